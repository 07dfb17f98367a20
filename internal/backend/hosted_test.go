package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InventoryChat/internal/session"
)

type mockChatModel struct {
	reply *schema.Message
	err   error
	got   []*schema.Message
}

func (m *mockChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.got = messages
	if m.err != nil {
		return nil, m.err
	}
	return m.reply, nil
}

func (m *mockChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func TestHostedInvoke(t *testing.T) {
	mock := &mockChatModel{
		reply: &schema.Message{
			Role:    schema.Assistant,
			Content: `{"answer": "There are 42 assets.", "sql_query": "SELECT COUNT(*) FROM Assets"}`,
			ResponseMeta: &schema.ResponseMeta{
				Usage: &schema.TokenUsage{PromptTokens: 900, CompletionTokens: 30, TotalTokens: 930},
			},
		},
	}
	h := newHostedWithModel(KindAzure, "inv-gpt4o", mock)

	reply, err := h.Invoke(context.Background(), []session.Turn{
		{Role: session.RoleSystem, Content: "sys"},
		session.UserTurn("q1"),
		session.AssistantTurn(`{"answer":"a1","sql_query":""}`),
		session.UserTurn("q2"),
	})
	require.NoError(t, err)

	assert.Equal(t, mock.reply.Content, reply.Content)
	assert.Equal(t, Usage{PromptTokens: 900, CompletionTokens: 30, TotalTokens: 930}, reply.Usage)

	require.Len(t, mock.got, 4)
	assert.Equal(t, schema.System, mock.got[0].Role)
	assert.Equal(t, schema.User, mock.got[1].Role)
	assert.Equal(t, schema.Assistant, mock.got[2].Role)
	assert.Equal(t, schema.User, mock.got[3].Role)
	assert.Equal(t, "q2", mock.got[3].Content)

	assert.Equal(t, KindAzure, h.Kind())
	assert.Equal(t, "inv-gpt4o", h.Model())
}

func TestHostedInvokeWithoutUsage(t *testing.T) {
	mock := &mockChatModel{reply: &schema.Message{Role: schema.Assistant, Content: "{}"}}
	h := newHostedWithModel(KindOpenAI, "gpt-4o-mini", mock)

	reply, err := h.Invoke(context.Background(), []session.Turn{session.UserTurn("q")})
	require.NoError(t, err)
	assert.Equal(t, Usage{}, reply.Usage)
}

func TestHostedInvokeErrors(t *testing.T) {
	upstream := errors.New("429 too many requests")
	h := newHostedWithModel(KindOpenAI, "gpt-4o-mini", &mockChatModel{err: upstream})

	_, err := h.Invoke(context.Background(), []session.Turn{session.UserTurn("q")})
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.Contains(t, err.Error(), "openai completion failed")

	h = newHostedWithModel(KindOpenAI, "gpt-4o-mini", &mockChatModel{})
	_, err = h.Invoke(context.Background(), []session.Turn{session.UserTurn("q")})
	assert.Error(t, err)
}

func TestNewHostedValidation(t *testing.T) {
	_, err := NewHosted(context.Background(), Config{Kind: KindOpenAI, Model: "gpt-4o-mini"}, nil)
	assert.Error(t, err)

	_, err = NewHosted(context.Background(), Config{Kind: KindOllama, Model: "llama3.2", APIKey: "x"}, nil)
	assert.Error(t, err)
}

func TestNewDispatchesByKind(t *testing.T) {
	b, err := New(context.Background(), Config{Kind: KindOllama, Model: "llama3.2", Endpoint: "http://localhost:11434"})
	require.NoError(t, err)
	assert.Equal(t, KindOllama, b.Kind())

	b, err = New(context.Background(), Config{Kind: KindOpenAI, Model: "gpt-4o-mini", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, KindOpenAI, b.Kind())
	assert.Equal(t, "gpt-4o-mini", b.Model())
}
