package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InventoryChat/internal/session"
)

func TestAssembleOrder(t *testing.T) {
	history := []session.Turn{
		session.UserTurn("How many assets do I have?"),
		session.AssistantTurn(`{"answer":"42","sql_query":"SELECT 1"}`),
	}

	messages := Assemble("SYS", history, "And by site?")

	require.Len(t, messages, 4)
	assert.Equal(t, session.Turn{Role: session.RoleSystem, Content: "SYS"}, messages[0])
	assert.Equal(t, history[0], messages[1])
	assert.Equal(t, history[1], messages[2])
	assert.Equal(t, session.Turn{Role: session.RoleUser, Content: "And by site?"}, messages[3])
}

func TestAssembleEmptyHistory(t *testing.T) {
	messages := Assemble(SystemPrompt, nil, "hello")

	require.Len(t, messages, 2)
	assert.Equal(t, session.RoleSystem, messages[0].Role)
	assert.Equal(t, "hello", messages[1].Content)
}

func TestAssembleDoesNotMutateHistory(t *testing.T) {
	history := make([]session.Turn, 1, 8)
	history[0] = session.UserTurn("first")

	_ = Assemble("SYS", history, "second")

	assert.Len(t, history, 1)
	assert.Equal(t, "first", history[0].Content)
	assert.Equal(t, session.Turn{}, history[:2][1])
}

func TestSystemPromptContents(t *testing.T) {
	assert.Contains(t, SystemPrompt, OutputContract)
	assert.Contains(t, SystemPrompt, "CREATE TABLE Assets (")
	assert.Contains(t, SystemPrompt, "CREATE TABLE AssetTransactions (")
	assert.NotContains(t, SystemPrompt, "{{schema}}")
	assert.NotContains(t, SystemPrompt, "{{contract}}")
}
