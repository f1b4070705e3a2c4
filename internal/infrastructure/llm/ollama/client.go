// Package ollama generates markup with a local Ollama server.
package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/devgen-studio/internal/infrastructure/llm"
)

type Client struct {
	baseURL    string
	model      string
	params     llm.Params
	prompts    llm.Prompts
	httpClient *http.Client
}

func New(baseURL, model string, params llm.Params, prompts llm.Prompts) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		params:     params,
		prompts:    prompts,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *Client) Generate(ctx context.Context, instruction string) (string, error) {
	return c.generate(ctx, "generate", c.prompts.Generate(instruction))
}

func (c *Client) Refine(ctx context.Context, instruction, currentMarkup string) (string, error) {
	return c.generate(ctx, "refine", c.prompts.Refine(instruction, currentMarkup))
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	TopK        int     `json:"top_k,omitempty"`
}

func (c *Client) generate(ctx context.Context, operation, prompt string) (string, error) {
	req := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: c.params.Temperature,
			TopP:        c.params.TopP,
			TopK:        c.params.TopK,
		},
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", req, &response, operation); err != nil {
		return "", err
	}
	return response.Response, nil
}
