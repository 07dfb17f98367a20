package backend

import (
	"fmt"
	"net/url"
	"strings"

	"InventoryChat/internal/config"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultLocalModel  = "llama3.2"
)

// Select resolves which backend serves the process. The order is fixed:
// Azure when both its key and endpoint are present, then OpenAI when its
// key is present, then the local Ollama instance which needs no
// credential. An error here is fatal at startup.
func Select(cfg config.Backends) (Config, error) {
	var out Config

	switch {
	case cfg.AzureAPIKey != "" && cfg.AzureEndpoint != "":
		out = Config{
			Kind:       KindAzure,
			Model:      firstNonEmpty(cfg.AzureDeployment, cfg.ModelName, defaultLocalModel),
			Endpoint:   cfg.AzureEndpoint,
			APIKey:     cfg.AzureAPIKey,
			APIVersion: firstNonEmpty(cfg.AzureAPIVersion, config.DefaultAzureAPIVersion),
		}
	case cfg.OpenAIAPIKey != "":
		out = Config{
			Kind:     KindOpenAI,
			Model:    firstNonEmpty(cfg.ModelName, defaultOpenAIModel),
			Endpoint: cfg.OpenAIBaseURL,
			APIKey:   cfg.OpenAIAPIKey,
		}
	default:
		out = Config{
			Kind:     KindOllama,
			Model:    firstNonEmpty(cfg.ModelName, defaultLocalModel),
			Endpoint: strings.TrimRight(firstNonEmpty(cfg.OllamaBaseURL, config.DefaultOllamaBaseURL), "/"),
		}
	}
	out.Timeout = cfg.Timeout

	if out.Endpoint != "" {
		if err := validateEndpoint(out.Endpoint); err != nil {
			return Config{}, fmt.Errorf("invalid %s endpoint: %w", out.Kind, err)
		}
	}
	return out, nil
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
