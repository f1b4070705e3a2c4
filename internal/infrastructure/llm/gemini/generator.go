// Package gemini generates markup with the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/kirillkom/devgen-studio/internal/infrastructure/llm"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/resilience"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Params  llm.Params
	Prompts llm.Prompts
}

type Generator struct {
	cli     *genai.Client
	model   string
	config  *genai.GenerateContentConfig
	prompts llm.Prompts
}

func New(ctx context.Context, cfg Config) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	clientCfg := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	cli, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Generator{
		cli:     cli,
		model:   model,
		config:  contentConfig(cfg.Params),
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
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}},
		g.config,
	)
	if err != nil {
		return "", translateError(operation, err)
	}
	return replyText(resp), nil
}

// replyText joins the text parts of the first candidate. A reply without
// candidates is empty, which the caller reports as an empty response.
func replyText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func contentConfig(params llm.Params) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(params.Temperature)),
		TopP:        genai.Ptr(float32(params.TopP)),
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}
	if params.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(params.TopK))
	}
	return cfg
}

// translateError turns SDK API errors into status errors the resilience
// classifier understands.
func translateError(operation string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &resilience.HTTPStatusError{
			Service:    "gemini",
			Operation:  operation,
			StatusCode: apiErr.Code,
			Body:       apiErr.Message,
		}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &resilience.HTTPStatusError{
			Service:    "gemini",
			Operation:  operation,
			StatusCode: apiErrPtr.Code,
			Body:       apiErrPtr.Message,
		}
	}
	return fmt.Errorf("gemini %s request: %w", operation, err)
}
