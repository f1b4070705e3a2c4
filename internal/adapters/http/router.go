package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/kirillkom/devgen-studio/internal/config"
	"github.com/kirillkom/devgen-studio/internal/core/domain"
	"github.com/kirillkom/devgen-studio/internal/core/ports"
	"github.com/kirillkom/devgen-studio/internal/markup"
)

const defaultMaxUploadBytes = 5 << 20

// HTTPMetrics instruments the handler chain and exposes the scrape endpoint.
type HTTPMetrics interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type Router struct {
	cfg       config.Config
	workspace ports.WorkspaceService
	metrics   HTTPMetrics
}

func NewRouter(cfg config.Config, workspace ports.WorkspaceService, metrics HTTPMetrics) *Router {
	if cfg.APIMaxUploadBytes <= 0 {
		cfg.APIMaxUploadBytes = defaultMaxUploadBytes
	}
	return &Router{
		cfg:       cfg,
		workspace: workspace,
		metrics:   metrics,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /v1/workspace", rt.getWorkspace)
	api.HandleFunc("POST /v1/workspace/generate", rt.generate)
	api.HandleFunc("POST /v1/workspace/refine", rt.refine)
	api.HandleFunc("POST /v1/workspace/upload", rt.upload)
	api.HandleFunc("POST /v1/workspace/clone", rt.clone)
	api.HandleFunc("POST /v1/workspace/clear", rt.clear)
	api.HandleFunc("PUT /v1/workspace/document", rt.putDocument)
	api.HandleFunc("POST /v1/workspace/format", rt.format)
	api.HandleFunc("PUT /v1/workspace/instruction", rt.putInstruction)
	api.HandleFunc("PUT /v1/workspace/theme", rt.putTheme)

	var guarded http.Handler = api
	guarded = backpressureMiddleware(guarded, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	guarded = rateLimitMiddleware(guarded, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rt.index)
	mux.HandleFunc("GET /preview", rt.preview)
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /v1/workspace/events", rt.events)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", guarded)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) getWorkspace(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.workspace.Snapshot())
}

type instructionRequest struct {
	Instruction string `json:"instruction"`
}

func (rt *Router) generate(w http.ResponseWriter, r *http.Request) {
	var req instructionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rt.respond(w, r)(rt.workspace.Generate(r.Context(), req.Instruction))
}

func (rt *Router) refine(w http.ResponseWriter, r *http.Request) {
	var req instructionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rt.respond(w, r)(rt.workspace.Refine(r.Context(), req.Instruction))
}

func (rt *Router) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.APIMaxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "The uploaded file is too large."})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to read the uploaded file."})
		return
	}
	if !utf8.Valid(content) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "The uploaded file is not valid UTF-8 text."})
		return
	}

	rt.respond(w, r)(rt.workspace.ImportFile(r.Context(), fileHeader.Filename, markup.DecodeText(content)))
}

func (rt *Router) clone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RepositoryURL string `json:"repository_url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	rt.respond(w, r)(rt.workspace.ImportRemote(r.Context(), req.RepositoryURL))
}

func (rt *Router) clear(w http.ResponseWriter, r *http.Request) {
	rt.respond(w, r)(rt.workspace.Clear(r.Context()))
}

func (rt *Router) putDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	rt.respond(w, r)(rt.workspace.Edit(r.Context(), req.Content))
}

func (rt *Router) format(w http.ResponseWriter, r *http.Request) {
	rt.respond(w, r)(rt.workspace.Reformat(r.Context()))
}

func (rt *Router) putInstruction(w http.ResponseWriter, r *http.Request) {
	var req instructionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rt.respond(w, r)(rt.workspace.SetInstruction(r.Context(), req.Instruction))
}

func (rt *Router) putTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme string `json:"theme"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	theme, err := domain.ParseTheme(req.Theme)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.respond(w, r)(rt.workspace.SetTheme(r.Context(), theme))
}

// preview serves the current document inside a CSP sandbox so it cannot
// reach the studio origin.
func (rt *Router) preview(w http.ResponseWriter, _ *http.Request) {
	view := rt.workspace.Snapshot()
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Content-Security-Policy", "sandbox allow-scripts allow-same-origin")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, view.Document)
}

func (rt *Router) respond(w http.ResponseWriter, r *http.Request) func(domain.StateView, error) {
	return func(view domain.StateView, err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
