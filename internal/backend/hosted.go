package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"InventoryChat/internal/session"
)

// Hosted serves both hosted backend kinds through the OpenAI chat
// completions wire format. Azure differs only in endpoint, api-version
// and deployment naming.
type Hosted struct {
	kind      Kind
	modelName string
	chatModel model.BaseChatModel
}

// NewHosted creates an OpenAI or Azure OpenAI backend
func NewHosted(ctx context.Context, cfg Config, httpClient *http.Client) (*Hosted, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for backend: %s", cfg.Kind)
	}

	temperature := float32(0)
	modelCfg := &openai.ChatModelConfig{
		APIKey:      cfg.APIKey,
		HTTPClient:  httpClient,
		Model:       cfg.Model,
		Temperature: &temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	switch cfg.Kind {
	case KindAzure:
		modelCfg.ByAzure = true
		modelCfg.BaseURL = cfg.Endpoint
		modelCfg.APIVersion = cfg.APIVersion
		// deployment names are used as given
		modelCfg.AzureModelMapperFunc = func(model string) string { return model }
	case KindOpenAI:
		modelCfg.BaseURL = cfg.Endpoint
	default:
		return nil, fmt.Errorf("backend %s is not a hosted backend", cfg.Kind)
	}

	chatModel, err := openai.NewChatModel(ctx, modelCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s chat model: %w", cfg.Kind, err)
	}
	return newHostedWithModel(cfg.Kind, cfg.Model, chatModel), nil
}

func newHostedWithModel(kind Kind, modelName string, chatModel model.BaseChatModel) *Hosted {
	return &Hosted{
		kind:      kind,
		modelName: modelName,
		chatModel: chatModel,
	}
}

func (h *Hosted) Kind() Kind    { return h.kind }
func (h *Hosted) Model() string { return h.modelName }

// Invoke performs one non-streaming chat completion
func (h *Hosted) Invoke(ctx context.Context, messages []session.Turn) (Reply, error) {
	input := make([]*schema.Message, len(messages))
	for i, msg := range messages {
		input[i] = &schema.Message{
			Role:    toSchemaRole(msg.Role),
			Content: msg.Content,
		}
	}

	out, err := h.chatModel.Generate(ctx, input)
	if err != nil {
		return Reply{}, fmt.Errorf("%s completion failed: %w", h.kind, err)
	}
	if out == nil {
		return Reply{}, fmt.Errorf("empty response from %s", h.kind)
	}

	reply := Reply{Content: out.Content}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		reply.Usage = Usage{
			PromptTokens:     out.ResponseMeta.Usage.PromptTokens,
			CompletionTokens: out.ResponseMeta.Usage.CompletionTokens,
			TotalTokens:      out.ResponseMeta.Usage.TotalTokens,
		}
	}
	return reply, nil
}

func toSchemaRole(role session.Role) schema.RoleType {
	switch role {
	case session.RoleSystem:
		return schema.System
	case session.RoleAssistant:
		return schema.Assistant
	default:
		return schema.User
	}
}
