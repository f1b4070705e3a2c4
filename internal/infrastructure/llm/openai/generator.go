// Package openai generates markup through any OpenAI-compatible chat
// completions endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kirillkom/devgen-studio/internal/infrastructure/llm"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/resilience"
)

const DefaultModel = "gpt-4o-mini"

const systemMessage = "You write complete, self-contained HTML pages styled with Tailwind CSS."

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Params  llm.Params
	Prompts llm.Prompts
}

type Generator struct {
	client  openai.Client
	model   string
	params  llm.Params
	prompts llm.Prompts
}

func New(cfg Config) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Generator{
		client:  openai.NewClient(opts...),
		model:   model,
		params:  cfg.Params,
		prompts: cfg.Prompts,
	}, nil
}

func (g *Generator) Generate(ctx context.Context, instruction string) (string, error) {
	return g.complete(ctx, "generate", g.prompts.Generate(instruction))
}

func (g *Generator) Refine(ctx context.Context, instruction, currentMarkup string) (string, error) {
	return g.complete(ctx, "refine", g.prompts.Refine(instruction, currentMarkup))
}

func (g *Generator) complete(ctx context.Context, operation, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemMessage),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(g.params.Temperature),
		TopP:        openai.Float(g.params.TopP),
	})
	if err != nil {
		return "", translateError(operation, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func translateError(operation string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &resilience.HTTPStatusError{
			Service:    "openai",
			Operation:  operation,
			StatusCode: apiErr.StatusCode,
			Body:       apiErr.Message,
		}
	}
	return fmt.Errorf("openai %s request: %w", operation, err)
}
