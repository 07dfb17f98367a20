package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"InventoryChat/internal/session"
)

// Kind names a backend family. The string value is what callers see as
// the provider.
type Kind string

const (
	KindAzure  Kind = "azure"  // primary hosted
	KindOpenAI Kind = "openai" // secondary hosted
	KindOllama Kind = "ollama" // local, no credential
)

// Config is the resolved backend for the lifetime of the process
type Config struct {
	Kind       Kind
	Model      string
	Endpoint   string
	APIKey     string
	APIVersion string // azure only
	Timeout    time.Duration
}

// Usage is the token accounting reported by a backend. Fields a backend
// does not report stay zero.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Reply is the raw text of one completion and its usage
type Reply struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Backend sends an assembled message list to a text-generation service
type Backend interface {
	// Invoke performs one blocking completion call
	Invoke(ctx context.Context, messages []session.Turn) (Reply, error)

	// Kind returns the backend family
	Kind() Kind

	// Model returns the model identifier requests are sent to
	Model() string
}

// New builds the backend variant described by cfg
func New(ctx context.Context, cfg Config) (Backend, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	switch cfg.Kind {
	case KindAzure, KindOpenAI:
		return NewHosted(ctx, cfg, httpClient)
	case KindOllama:
		return NewOllama(cfg, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Kind)
	}
}
