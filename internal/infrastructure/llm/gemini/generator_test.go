package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/devgen-studio/internal/infrastructure/llm"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/resilience"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gen, err := New(context.Background(), Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Params:  llm.DefaultParams(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return gen
}

func TestGenerateSendsPromptAndParams(t *testing.T) {
	var payload struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
		GenerationConfig struct {
			Temperature float64 `json:"temperature"`
			TopP        float64 `json:"topP"`
			TopK        float64 `json:"topK"`
		} `json:"generationConfig"`
		SafetySettings []struct {
			Threshold string `json:"threshold"`
		} `json:"safetySettings"`
	}
	var path string

	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"` + "```html\\n<p>hi</p>\\n```" + `"}]}}]}`))
	})

	reply, err := gen.Generate(context.Background(), "a greeting")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if reply != "```html\n<p>hi</p>\n```" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if !strings.HasSuffix(path, "models/gemini-2.5-flash:generateContent") {
		t.Fatalf("unexpected path %q", path)
	}
	if len(payload.Contents) != 1 || !strings.Contains(payload.Contents[0].Parts[0].Text, `Prompt: "a greeting"`) {
		t.Fatalf("unexpected contents: %+v", payload.Contents)
	}
	if payload.GenerationConfig.TopK != 64 || payload.GenerationConfig.TopP < 0.94 || payload.GenerationConfig.Temperature < 0.69 {
		t.Fatalf("unexpected generation config: %+v", payload.GenerationConfig)
	}
	if len(payload.SafetySettings) != 4 || payload.SafetySettings[0].Threshold != "BLOCK_NONE" {
		t.Fatalf("unexpected safety settings: %+v", payload.SafetySettings)
	}
}

func TestGenerateWithoutCandidatesIsEmpty(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})

	reply, err := gen.Generate(context.Background(), "x")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if reply != "" {
		t.Fatalf("expected empty reply, got %q", reply)
	}
}

func TestRefineMapsAPIErrorStatus(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
	})

	_, err := gen.Refine(context.Background(), "x", "<p></p>")
	var statusErr *resilience.HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected status error, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable || statusErr.Operation != "refine" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing key error")
	}
}
