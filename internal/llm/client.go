package llm

import (
	"context"
	"fmt"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/observability"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Completer is the single completion surface the rest of the code depends
// on: prompt in, text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client adapts a langchaingo model to the Completer interface. When a
// Logger is set, every completion is mirrored to the llm event log.
type Client struct {
	Model  llms.Model
	Logger *observability.Logger
}

func New(model llms.Model) *Client {
	return &Client{Model: model}
}

// NewFromConfig builds a client for the configured default provider.
func NewFromConfig(cfg *config.Config) (*Client, error) {
	name, pCfg := cfg.GetDefaultProvider()
	if name == "" {
		return nil, fmt.Errorf("no enabled provider found in config")
	}

	switch name {
	case "openai", "openrouter", "azure":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, err
		}
		return New(model), nil
	default:
		return nil, fmt.Errorf("provider %s not supported", name)
	}
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.Model, prompt)
	if err != nil {
		return "", err
	}
	if c.Logger != nil {
		c.Logger.LogLLM("", prompt, out)
	}
	return out, nil
}
