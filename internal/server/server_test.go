package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InventoryChat/internal/backend"
	"InventoryChat/internal/chatbot"
	"InventoryChat/internal/normalize"
)

type fakeChatter struct {
	mu     sync.Mutex
	calls  []ChatRequest
	result chatbot.ChatResult
	panic  bool
}

func (f *fakeChatter) Handle(ctx context.Context, sessionID, message string) chatbot.ChatResult {
	if f.panic {
		panic("boom")
	}
	f.mu.Lock()
	f.calls = append(f.calls, ChatRequest{SessionID: sessionID, Message: message})
	f.mu.Unlock()
	return f.result
}

func (f *fakeChatter) recorded() []ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ChatRequest(nil), f.calls...)
}

func (f *fakeChatter) Status() chatbot.Status {
	return chatbot.Status{Provider: backend.KindAzure, Model: "inv-gpt4o"}
}

func newTestServer(bot Chatter) http.Handler {
	gin.SetMode(gin.TestMode)
	return New(bot, slog.New(slog.NewJSONHandler(io.Discard, nil))).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndex(t *testing.T) {
	h := newTestServer(&fakeChatter{})

	for _, path := range []string{"/", "/index.html"} {
		rec := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "<title>Inventory Chat</title>")
	}
}

func TestStatus(t *testing.T) {
	h := newTestServer(&fakeChatter{})

	rec := do(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"running","provider":"azure","model":"inv-gpt4o"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestChat(t *testing.T) {
	bot := &fakeChatter{result: chatbot.ChatResult{
		Answer:     "You have 42 assets.",
		SQLQuery:   "SELECT COUNT(*) FROM Assets WHERE Status <> 'Disposed'",
		TokenUsage: backend.Usage{PromptTokens: 900, CompletionTokens: 30, TotalTokens: 930},
		LatencyMS:  1200,
		Provider:   backend.KindAzure,
		Model:      "inv-gpt4o",
		Status:     normalize.StatusOK,
	}}
	h := newTestServer(bot)

	rec := do(t, h, http.MethodPost, "/api/chat", `{"session_id":"s1","message":"How many assets do I have?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "You have 42 assets.", got["natural_language_answer"])
	assert.Equal(t, "SELECT COUNT(*) FROM Assets WHERE Status <> 'Disposed'", got["sql_query"])
	assert.Equal(t, map[string]any{"prompt_tokens": 900.0, "completion_tokens": 30.0, "total_tokens": 930.0}, got["token_usage"])
	assert.Equal(t, 1200.0, got["latency_ms"])
	assert.Equal(t, "azure", got["provider"])
	assert.Equal(t, "inv-gpt4o", got["model"])
	assert.Equal(t, "ok", got["status"])
	assert.NotContains(t, got, "error_message")

	require.Len(t, bot.calls, 1)
	assert.Equal(t, ChatRequest{SessionID: "s1", Message: "How many assets do I have?"}, bot.calls[0])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestChatErrorResultIsStill200(t *testing.T) {
	bot := &fakeChatter{result: chatbot.ChatResult{
		Provider:     backend.KindOllama,
		Model:        "llama3.2",
		Status:       normalize.StatusError,
		ErrorMessage: "failed to send request (is Ollama running?): connection refused",
	}}
	h := newTestServer(bot)

	rec := do(t, h, http.MethodPost, "/api/chat", `{"session_id":"s1","message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "error", got["status"])
	assert.Contains(t, got["error_message"], "connection refused")
}

func TestChatBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "malformed json", body: `{"session_id": "s1", "message": `, want: `{"error":"Invalid JSON"}`},
		{name: "not json", body: `hello`, want: `{"error":"Invalid JSON"}`},
		{name: "wrong type", body: `{"session_id": 1, "message": "hi"}`, want: `{"error":"Invalid JSON"}`},
		{name: "missing message", body: `{"session_id": "s1"}`, want: `{"error":"session_id and message are required"}`},
		{name: "blank session", body: `{"session_id": "  ", "message": "hi"}`, want: `{"error":"session_id and message are required"}`},
		{name: "blank message", body: `{"session_id": "s1", "message": "\n\t"}`, want: `{"error":"session_id and message are required"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := &fakeChatter{}
			h := newTestServer(bot)

			rec := do(t, h, http.MethodPost, "/api/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
			assert.Empty(t, bot.calls)
		})
	}
}

func TestPreflight(t *testing.T) {
	h := newTestServer(&fakeChatter{})

	for _, path := range []string{"/api/chat", "/anything"} {
		rec := do(t, h, http.MethodOptions, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	}
}

func TestNotFound(t *testing.T) {
	h := newTestServer(&fakeChatter{})

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/api/unknown"},
		{http.MethodGet, "/api/chat"},
		{http.MethodPost, "/api/status"},
	} {
		rec := do(t, h, req.method, req.path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, req.path)
		assert.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())
	}
}

func TestPanicRecovery(t *testing.T) {
	h := newTestServer(&fakeChatter{panic: true})

	rec := do(t, h, http.MethodPost, "/api/chat", `{"session_id":"s1","message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	bot := &fakeChatter{result: chatbot.ChatResult{Provider: backend.KindAzure, Status: normalize.StatusOK}}
	h := newTestServer(bot)

	do(t, h, http.MethodPost, "/api/chat", `{"session_id":"s1","message":"hi"}`)

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "invchat_http_requests_total")
	assert.Contains(t, rec.Body.String(), `invchat_chat_exchanges_total{cached="false",provider="azure",status="ok"}`)
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := newTestServer(&fakeChatter{})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}
