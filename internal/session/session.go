package session

// Role identifies the author of a Turn
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultWindow keeps the last 10 exchanges (user + assistant each)
const DefaultWindow = 20

// Turn represents a single message in a conversation. Turns are values and
// are never modified once appended to a session.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn wraps an incoming user message
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn wraps a reply produced by a backend
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}
