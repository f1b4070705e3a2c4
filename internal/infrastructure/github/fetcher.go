// Package github downloads repository entry files from raw.githubusercontent.com.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/devgen-studio/internal/core/domain"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/resilience"
	"github.com/kirillkom/devgen-studio/internal/markup"
)

const (
	DefaultRawBaseURL = "https://raw.githubusercontent.com"
	DefaultBranch     = "main"
	DefaultEntryFile  = "index.html"

	maxEntryBytes = 5 << 20
)

type Config struct {
	RawBaseURL string
	Branch     string
	EntryFile  string
}

type Fetcher struct {
	baseURL    string
	branch     string
	entry      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewFetcher(cfg Config, executor *resilience.Executor) *Fetcher {
	f := &Fetcher{
		baseURL:    strings.TrimRight(cfg.RawBaseURL, "/"),
		branch:     strings.Trim(cfg.Branch, "/"),
		entry:      strings.TrimLeft(cfg.EntryFile, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
	if f.baseURL == "" {
		f.baseURL = DefaultRawBaseURL
	}
	if f.branch == "" {
		f.branch = DefaultBranch
	}
	if f.entry == "" {
		f.entry = DefaultEntryFile
	}
	return f
}

// FetchEntry downloads <branch>/<entry> of repoPath ("owner/repo").
func (f *Fetcher) FetchEntry(ctx context.Context, repoPath string) (string, error) {
	if f.executor == nil {
		return f.fetch(ctx, repoPath)
	}
	body, err := resilience.Do(ctx, f.executor, "github.fetch", func(ctx context.Context) (string, error) {
		return f.fetch(ctx, repoPath)
	}, resilience.ClassifyUpstream)
	if resilience.IsCircuitOpen(err) {
		return "", domain.NewUserError(domain.ErrTemporary, "GitHub is not reachable right now. Please try again shortly.", err)
	}
	return body, err
}

func (f *Fetcher) fetch(ctx context.Context, repoPath string) (string, error) {
	url := fmt.Sprintf("%s/%s/%s/%s", f.baseURL, strings.Trim(repoPath, "/"), f.branch, f.entry)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create fetch request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", domain.NewUserError(domain.ErrUpstream, "Failed to clone repository.", fmt.Errorf("fetch %s: %w", url, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", domain.NewUserError(domain.ErrUpstream, f.statusMessage(resp.StatusCode), &resilience.HTTPStatusError{
			Service:    "github",
			Operation:  "fetch",
			StatusCode: resp.StatusCode,
		})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEntryBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	return markup.DecodeText(body), nil
}

func (f *Fetcher) statusMessage(status int) string {
	return fmt.Sprintf("Failed to fetch %s. Status: %d. Check the repository URL and that the '%s' branch exists.", f.entry, status, f.branch)
}
