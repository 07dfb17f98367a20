package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Status is the outcome of one exchange
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Stage records which step of the pipeline produced the answer
type Stage string

const (
	StageStrict    Stage = "strict"
	StageExtracted Stage = "extracted"
	StageRepaired  Stage = "repaired"
	StageFailed    Stage = "failed"
)

const emptyReplyAnswer = "Failed to parse response"

var errNotObject = errors.New("expected a JSON object")

var (
	answerPattern   = regexp.MustCompile(`(?s)"answer"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	sqlQueryPattern = regexp.MustCompile(`(?s)"sql_query"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// Decoded is the structured form of one backend reply
type Decoded struct {
	Answer       string
	SQLQuery     string
	Status       Status
	Stage        Stage
	ErrorMessage string
}

type replyContract struct {
	Answer   string `json:"answer"`
	SQLQuery string `json:"sql_query"`
}

// Decoder runs the normalization pipeline. With Repair set, replies that
// neither parse nor yield an answer by extraction get one more attempt
// through jsonrepair before being reported as errors.
type Decoder struct {
	Repair bool
}

// Decode runs the default pipeline, without the repair stage
func Decode(raw string) Decoded {
	return Decoder{}.Decode(raw)
}

// Decode turns a raw backend reply into an answer/SQL pair. It never
// fails: replies that cannot be salvaged come back with StatusError and
// the fence-stripped text as the answer.
func (d Decoder) Decode(raw string) Decoded {
	body := StripFence(raw)
	clean := Sanitize(body)

	parsed, err := decodeStrict(clean)
	if err == nil {
		return Decoded{
			Answer:   parsed.Answer,
			SQLQuery: parsed.SQLQuery,
			Status:   StatusOK,
			Stage:    StageStrict,
		}
	}

	if answer, ok := extract(answerPattern, clean); ok && answer != "" {
		sqlQuery, _ := extract(sqlQueryPattern, clean)
		return Decoded{
			Answer:   answer,
			SQLQuery: sqlQuery,
			Status:   StatusOK,
			Stage:    StageExtracted,
		}
	}

	if !d.Repair {
		return failed(body, err)
	}
	if repaired, ok := repair(clean); ok {
		return Decoded{
			Answer:   repaired.Answer,
			SQLQuery: repaired.SQLQuery,
			Status:   StatusOK,
			Stage:    StageRepaired,
		}
	}

	return failed(body, err)
}

// failed reports body as the answer of an unparsable reply
func failed(body string, err error) Decoded {
	answer := body
	if answer == "" {
		answer = emptyReplyAnswer
	}
	return Decoded{
		Answer:       answer,
		Status:       StatusError,
		Stage:        StageFailed,
		ErrorMessage: fmt.Sprintf("JSON parse error: %v", err),
	}
}

// decodeStrict parses s as a single JSON object carrying string-typed
// answer and sql_query fields. Missing fields default to "".
func decodeStrict(s string) (replyContract, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") {
		if trimmed == "" {
			return replyContract{}, errors.New("empty reply")
		}
		return replyContract{}, errNotObject
	}

	var parsed replyContract
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return replyContract{}, err
	}
	return parsed, nil
}

// extract returns the first quoted value matched by pattern with \n and \"
// sequences unescaped. The first occurrence wins even when the reply
// repeats the key.
func extract(pattern *regexp.Regexp, s string) (string, bool) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	value := strings.ReplaceAll(m[1], `\n`, "\n")
	value = strings.ReplaceAll(value, `\"`, `"`)
	return value, true
}

// repair runs s through jsonrepair and decodes the result strictly. Only
// a non-empty answer counts as recovered.
func repair(s string) (replyContract, bool) {
	if strings.TrimSpace(s) == "" {
		return replyContract{}, false
	}
	fixed, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return replyContract{}, false
	}
	parsed, err := decodeStrict(fixed)
	if err != nil || parsed.Answer == "" {
		return replyContract{}, false
	}
	return parsed, true
}
