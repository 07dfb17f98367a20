package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"InventoryChat/internal/backend"
	"InventoryChat/internal/cache"
	"InventoryChat/internal/normalize"
	"InventoryChat/internal/prompt"
	"InventoryChat/internal/session"
	"InventoryChat/internal/telemetry"
)

// SessionStore is the per-session history the ChatBot reads and extends.
// Acquire must serialize callers that share an id.
type SessionStore interface {
	Acquire(id string) func()
	History(id string) []session.Turn
	Append(id string, turns ...session.Turn)
}

// Archiver persists finished exchanges
type Archiver interface {
	Record(ctx context.Context, e telemetry.Exchange) error
}

// ChatResult is the outcome of one exchange as returned to callers
type ChatResult struct {
	Answer       string           `json:"natural_language_answer"`
	SQLQuery     string           `json:"sql_query"`
	TokenUsage   backend.Usage    `json:"token_usage"`
	LatencyMS    int64            `json:"latency_ms"`
	Provider     backend.Kind     `json:"provider"`
	Model        string           `json:"model"`
	Status       normalize.Status `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Cached       bool             `json:"cached,omitempty"`
}

// Status is a read-only snapshot of the serving backend
type Status struct {
	Provider backend.Kind `json:"provider"`
	Model    string       `json:"model"`
}

// Options carries the optional collaborators of a ChatBot. Zero values
// disable caching and archiving and fall back to the global logger,
// tracer and meter.
type Options struct {
	SystemPrompt string
	RepairJSON   bool
	Cache        cache.ReplyCache
	Archive      Archiver
	Logger       *slog.Logger
	Tracer       trace.Tracer
	Meter        metric.Meter
}

// ChatBot turns a user message into an answer/SQL pair using the
// configured backend and the caller's conversation history
type ChatBot struct {
	backend      backend.Backend
	store        SessionStore
	systemPrompt string
	decoder      normalize.Decoder
	cache        cache.ReplyCache
	archive      Archiver
	logger       *slog.Logger
	tracer       trace.Tracer

	requestDuration  metric.Float64Histogram
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	exchanges        metric.Int64Counter

	pending sync.WaitGroup
}

// NewChatBot creates a new ChatBot instance
func NewChatBot(b backend.Backend, store SessionStore, opts Options) (*ChatBot, error) {
	if b == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}

	cb := &ChatBot{
		backend:      b,
		store:        store,
		systemPrompt: opts.SystemPrompt,
		decoder:      normalize.Decoder{Repair: opts.RepairJSON},
		cache:        opts.Cache,
		archive:      opts.Archive,
		logger:       opts.Logger,
		tracer:       opts.Tracer,
	}
	if cb.systemPrompt == "" {
		cb.systemPrompt = prompt.SystemPrompt
	}
	if cb.logger == nil {
		cb.logger = slog.Default()
	}
	if cb.tracer == nil {
		cb.tracer = otel.Tracer(telemetry.ServiceName)
	}
	meter := opts.Meter
	if meter == nil {
		meter = otel.Meter(telemetry.ServiceName)
	}

	var err error
	cb.requestDuration, err = meter.Float64Histogram(
		"llm.request.duration",
		metric.WithDescription("Backend request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	cb.promptTokens, err = meter.Int64Counter(
		"llm.usage.prompt_tokens",
		metric.WithDescription("Prompt tokens reported by the backend"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt token counter: %w", err)
	}
	cb.completionTokens, err = meter.Int64Counter(
		"llm.usage.completion_tokens",
		metric.WithDescription("Completion tokens reported by the backend"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion token counter: %w", err)
	}
	cb.exchanges, err = meter.Int64Counter(
		"chat.exchanges",
		metric.WithDescription("Finished exchanges by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create exchange counter: %w", err)
	}

	return cb, nil
}

// Status reports which backend and model serve requests
func (cb *ChatBot) Status() Status {
	return Status{
		Provider: cb.backend.Kind(),
		Model:    cb.backend.Model(),
	}
}

// History returns a copy of the turns stored for sessionID
func (cb *ChatBot) History(sessionID string) []session.Turn {
	return cb.store.History(sessionID)
}

// Handle runs one exchange. The session's history is read, extended and
// written back under its exchange lock, so concurrent calls for the same
// id apply in order. History only grows when the result is ok.
func (cb *ChatBot) Handle(ctx context.Context, sessionID, message string) ChatResult {
	release := cb.store.Acquire(sessionID)
	defer release()

	history := cb.store.History(sessionID)
	messages := prompt.Assemble(cb.systemPrompt, history, message)

	result := ChatResult{
		Provider: cb.backend.Kind(),
		Model:    cb.backend.Model(),
	}

	var cacheKey string
	var reply backend.Reply
	var hit bool
	if cb.cache != nil {
		cacheKey = cache.Key(result.Provider, result.Model, messages)
		cached, ok, err := cb.cache.Get(ctx, cacheKey)
		if err != nil {
			cb.logger.Warn("cache lookup failed", "session_id", sessionID, "error", err)
		} else if ok {
			reply, hit = cached, true
			cb.logger.Debug("cache hit", "session_id", sessionID, "key", cacheKey[:16])
		}
	}

	start := time.Now()
	if !hit {
		var err error
		reply, err = cb.invoke(ctx, messages)
		if err != nil {
			result.LatencyMS = time.Since(start).Milliseconds()
			result.Status = normalize.StatusError
			result.ErrorMessage = err.Error()
			cb.finish(ctx, sessionID, message, result, normalize.StageFailed)
			return result
		}
	}
	result.LatencyMS = time.Since(start).Milliseconds()

	decoded := cb.decoder.Decode(reply.Content)
	result.Answer = decoded.Answer
	result.SQLQuery = decoded.SQLQuery
	result.Status = decoded.Status
	result.ErrorMessage = decoded.ErrorMessage
	if hit {
		result.Cached = true
	} else {
		result.TokenUsage = reply.Usage
	}

	if decoded.Status == normalize.StatusOK {
		cb.store.Append(sessionID,
			session.UserTurn(message),
			session.AssistantTurn(assistantContent(decoded.Answer, decoded.SQLQuery)),
		)
		if cb.cache != nil && !hit {
			if err := cb.cache.Set(ctx, cacheKey, reply); err != nil {
				cb.logger.Warn("failed to cache reply", "session_id", sessionID, "error", err)
			}
		}
	}

	cb.finish(ctx, sessionID, message, result, decoded.Stage)
	return result
}

// invoke calls the backend inside a span and records duration and usage
func (cb *ChatBot) invoke(ctx context.Context, messages []session.Turn) (backend.Reply, error) {
	attrs := []attribute.KeyValue{
		attribute.String("llm.provider", string(cb.backend.Kind())),
		attribute.String("llm.model", cb.backend.Model()),
	}

	ctx, span := cb.tracer.Start(ctx, "backend_call", trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	reply, err := cb.backend.Invoke(ctx, messages)
	cb.requestDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return backend.Reply{}, err
	}

	span.SetAttributes(
		attribute.Int("llm.usage.prompt_tokens", reply.Usage.PromptTokens),
		attribute.Int("llm.usage.completion_tokens", reply.Usage.CompletionTokens),
	)
	cb.promptTokens.Add(ctx, int64(reply.Usage.PromptTokens), metric.WithAttributes(attrs...))
	cb.completionTokens.Add(ctx, int64(reply.Usage.CompletionTokens), metric.WithAttributes(attrs...))
	return reply, nil
}

// finish logs the exchange and hands it to the archive in the background
func (cb *ChatBot) finish(ctx context.Context, sessionID, message string, result ChatResult, stage normalize.Stage) {
	cb.exchanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(result.Status)),
		attribute.String("llm.provider", string(result.Provider)),
	))

	logArgs := []any{
		"session_id", sessionID,
		"provider", result.Provider,
		"model", result.Model,
		"status", result.Status,
		"stage", stage,
		"latency_ms", result.LatencyMS,
		"total_tokens", result.TokenUsage.TotalTokens,
		"cached", result.Cached,
	}
	if result.Status == normalize.StatusOK {
		cb.logger.Info("chat exchange", logArgs...)
	} else {
		cb.logger.Warn("chat exchange failed", append(logArgs, "error", result.ErrorMessage)...)
	}

	if cb.archive == nil {
		return
	}

	exchange := telemetry.Exchange{
		SessionID:        sessionID,
		UserMessage:      message,
		Answer:           result.Answer,
		SQLQuery:         result.SQLQuery,
		Status:           string(result.Status),
		ErrorMessage:     result.ErrorMessage,
		Provider:         string(result.Provider),
		Model:            result.Model,
		PromptTokens:     result.TokenUsage.PromptTokens,
		CompletionTokens: result.TokenUsage.CompletionTokens,
		TotalTokens:      result.TokenUsage.TotalTokens,
		LatencyMS:        result.LatencyMS,
		Cached:           result.Cached,
		CreatedAt:        time.Now().UTC(),
	}

	cb.pending.Add(1)
	go func() {
		defer cb.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cb.archive.Record(ctx, exchange); err != nil {
			cb.logger.Error("failed to archive exchange", "session_id", sessionID, "error", err)
		}
	}()
}

// Close waits for background archive writes to finish
func (cb *ChatBot) Close() {
	cb.pending.Wait()
}

// assistantContent renders the stored assistant turn as compact JSON.
// HTML escaping is off so SQL operators like <> stay readable.
func assistantContent(answer, sqlQuery string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(struct {
		Answer   string `json:"answer"`
		SQLQuery string `json:"sql_query"`
	}{answer, sqlQuery})
	return strings.TrimSuffix(buf.String(), "\n")
}
