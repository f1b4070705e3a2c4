package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/devgen-studio/internal/core/domain"
	"github.com/kirillkom/devgen-studio/internal/core/ports"
	"github.com/kirillkom/devgen-studio/internal/markup"
)

const (
	msgEmptyResponse    = "The AI returned an empty response. Please try a different prompt."
	msgGenerateFailed   = "Failed to generate code from the AI service."
	msgRefineFailed     = "Failed to refine code from the AI service."
	msgEmptyInstruction = "Enter a prompt first."
	msgNothingToRefine  = "There is no code to refine. Generate or import a page first."
	msgUnavailable      = "The AI service is temporarily unavailable. Please try again shortly."
	uploadFallbackName  = "local file"
)

type WorkspaceConfig struct {
	WorkspaceID  string
	PreviewDelay time.Duration
	SavedDelay   time.Duration
	IdleDelay    time.Duration
}

func DefaultWorkspaceConfig() WorkspaceConfig {
	return WorkspaceConfig{
		WorkspaceID:  "default",
		PreviewDelay: 500 * time.Millisecond,
		SavedDelay:   time.Second,
		IdleDelay:    2 * time.Second,
	}
}

// WorkspaceUseCase owns the single editing session. Operations that call
// out to a collaborator flip the operation status, make the call without
// holding any lock and commit the result. writeMu serializes every change
// to state and every write to the store; mu guards reads and the
// persistence indicator.
type WorkspaceUseCase struct {
	store     ports.WorkspaceStore
	generator ports.MarkupGenerator
	fetcher   ports.RepositoryFetcher
	publisher ports.RevisionPublisher
	observer  ports.OperationObserver
	cfg       WorkspaceConfig
	now       func() time.Time

	writeMu       sync.Mutex
	mu            sync.Mutex
	state         domain.Workspace
	persistence   domain.PersistenceStatus
	savedRevision uint64

	hub      *eventHub
	autosave *Autosave
}

func NewWorkspaceUseCase(
	store ports.WorkspaceStore,
	generator ports.MarkupGenerator,
	fetcher ports.RepositoryFetcher,
	publisher ports.RevisionPublisher,
	observer ports.OperationObserver,
	cfg WorkspaceConfig,
) *WorkspaceUseCase {
	uc := &WorkspaceUseCase{
		store:       store,
		generator:   generator,
		fetcher:     fetcher,
		publisher:   publisher,
		observer:    observer,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
		state:       domain.NewWorkspace(),
		persistence: domain.PersistenceIdle,
		hub:         newEventHub(),
	}
	uc.autosave = NewAutosave(cfg.PreviewDelay, cfg.SavedDelay, cfg.IdleDelay, AutosaveHooks{
		Preview: uc.emitPreview,
		Flush:   uc.flush,
		Status:  uc.setPersistence,
	})
	return uc
}

// Restore loads the persisted session. Missing keys fall back to the
// initial workspace inside the store.
func (uc *WorkspaceUseCase) Restore(ctx context.Context) error {
	ws, err := uc.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load workspace: %w", err)
	}
	ws.Operation = domain.OperationIdle

	uc.writeMu.Lock()
	defer uc.writeMu.Unlock()
	uc.mu.Lock()
	uc.state = ws
	uc.savedRevision = ws.Revision
	uc.mu.Unlock()
	return nil
}

// Close cancels pending autosave stages without flushing them.
func (uc *WorkspaceUseCase) Close() {
	uc.autosave.Stop()
}

func (uc *WorkspaceUseCase) Snapshot() domain.StateView {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return domain.NewStateView(uc.state, uc.persistence)
}

func (uc *WorkspaceUseCase) Subscribe(ctx context.Context) <-chan domain.WorkspaceEvent {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.hub.subscribe(ctx, uc.eventLocked(domain.EventState))
}

func (uc *WorkspaceUseCase) Generate(ctx context.Context, instruction string) (domain.StateView, error) {
	instruction, err := uc.requireInstruction(ctx, instruction)
	if err != nil {
		return uc.Snapshot(), err
	}

	return uc.runOperation(ctx, domain.OperationGenerating, func(ctx context.Context, _ domain.Workspace) (transition, error) {
		reply, err := uc.generator.Generate(ctx, instruction)
		if err != nil {
			return nil, generatorError(err, msgGenerateFailed, "generate markup")
		}
		document, err := acceptReply(reply)
		if err != nil {
			return nil, err
		}
		return func(ws domain.Workspace) domain.Workspace {
			return ws.Accept(document, instruction, uc.now())
		}, nil
	})
}

func (uc *WorkspaceUseCase) Refine(ctx context.Context, instruction string) (domain.StateView, error) {
	uc.mu.Lock()
	hasCode := uc.state.HasCode()
	uc.mu.Unlock()
	if !hasCode {
		return uc.Snapshot(), domain.NewUserError(domain.ErrInvalidInput, msgNothingToRefine, nil)
	}

	instruction, err := uc.requireInstruction(ctx, instruction)
	if err != nil {
		return uc.Snapshot(), err
	}

	return uc.runOperation(ctx, domain.OperationRefining, func(ctx context.Context, ws domain.Workspace) (transition, error) {
		if !ws.HasCode() {
			return nil, domain.NewUserError(domain.ErrInvalidInput, msgNothingToRefine, nil)
		}
		reply, err := uc.generator.Refine(ctx, instruction, ws.Document)
		if err != nil {
			return nil, generatorError(err, msgRefineFailed, "refine markup")
		}
		document, err := acceptReply(reply)
		if err != nil {
			return nil, err
		}
		return func(ws domain.Workspace) domain.Workspace {
			return ws.Accept(document, instruction, uc.now())
		}, nil
	})
}

func (uc *WorkspaceUseCase) ImportFile(ctx context.Context, filename, content string) (domain.StateView, error) {
	name := strings.TrimSpace(filename)
	if name == "" {
		name = uploadFallbackName
	}
	document := markup.EnsureHeadAssets(markup.Format(content))

	view, err := uc.commit(ctx, true, func(ws domain.Workspace) domain.Workspace {
		return ws.Replace(document, domain.FromUpload{Filename: name}, uc.now())
	})
	if err != nil {
		return view, err
	}
	uc.autosave.Touch()
	return view, nil
}

func (uc *WorkspaceUseCase) ImportRemote(ctx context.Context, repositoryURL string) (domain.StateView, error) {
	ref, err := domain.ParseRepositoryURL(repositoryURL)
	if err != nil {
		return uc.Snapshot(), err
	}

	return uc.runOperation(ctx, domain.OperationCloning, func(ctx context.Context, _ domain.Workspace) (transition, error) {
		body, err := uc.fetcher.FetchEntry(ctx, ref.Path())
		if err != nil {
			return nil, err
		}
		document := markup.EnsureHeadAssets(markup.Format(body))
		return func(ws domain.Workspace) domain.Workspace {
			return ws.Replace(document, domain.FromRepository{Path: ref.Path()}, uc.now())
		}, nil
	})
}

func (uc *WorkspaceUseCase) Clear(ctx context.Context) (domain.StateView, error) {
	view, err := uc.commit(ctx, true, func(ws domain.Workspace) domain.Workspace {
		return ws.Clear(uc.now())
	})
	if err != nil {
		return view, err
	}
	uc.autosave.Touch()
	return view, nil
}

// Edit stores the editor content verbatim. Persistence goes through the
// autosave cycle rather than the request.
func (uc *WorkspaceUseCase) Edit(_ context.Context, content string) (domain.StateView, error) {
	return uc.editInPlace(func(ws domain.Workspace) domain.Workspace {
		return ws.Edit(content, uc.now())
	})
}

func (uc *WorkspaceUseCase) Reformat(_ context.Context) (domain.StateView, error) {
	return uc.editInPlace(func(ws domain.Workspace) domain.Workspace {
		return ws.Reformat(markup.Format, uc.now())
	})
}

func (uc *WorkspaceUseCase) SetInstruction(ctx context.Context, text string) (domain.StateView, error) {
	return uc.commit(ctx, false, func(ws domain.Workspace) domain.Workspace {
		return ws.WithInstruction(text)
	})
}

func (uc *WorkspaceUseCase) SetTheme(ctx context.Context, theme domain.Theme) (domain.StateView, error) {
	parsed, err := domain.ParseTheme(string(theme))
	if err != nil {
		return uc.Snapshot(), err
	}
	return uc.commit(ctx, false, func(ws domain.Workspace) domain.Workspace {
		return ws.WithTheme(parsed)
	})
}

type transition func(domain.Workspace) domain.Workspace

// runOperation marks op in flight, runs call outside the lock and commits
// the transition it returns. The operation status is settled on every path.
func (uc *WorkspaceUseCase) runOperation(
	ctx context.Context,
	op domain.OperationStatus,
	call func(context.Context, domain.Workspace) (transition, error),
) (view domain.StateView, err error) {
	uc.writeMu.Lock()
	uc.mu.Lock()
	started, err := uc.state.Begin(op)
	if err != nil {
		view = domain.NewStateView(uc.state, uc.persistence)
		uc.mu.Unlock()
		uc.writeMu.Unlock()
		return view, err
	}
	uc.state = started
	uc.broadcastLocked(domain.EventState)
	uc.mu.Unlock()
	uc.writeMu.Unlock()

	startedAt := time.Now()
	defer func() {
		uc.writeMu.Lock()
		uc.mu.Lock()
		uc.state = uc.state.Settle()
		uc.broadcastLocked(domain.EventState)
		view = domain.NewStateView(uc.state, uc.persistence)
		uc.mu.Unlock()
		uc.writeMu.Unlock()
		uc.observe(ctx, op, startedAt, err)
	}()

	apply, err := call(ctx, started)
	if err != nil {
		return view, err
	}
	if _, err = uc.commit(ctx, false, apply); err != nil {
		return view, err
	}
	uc.autosave.Touch()
	return view, nil
}

// commit saves the transitioned state and installs exactly that state once
// the store accepted it, so a failed write leaves the workspace untouched.
// writeMu keeps state fixed between the two steps.
func (uc *WorkspaceUseCase) commit(ctx context.Context, requireIdle bool, apply transition) (domain.StateView, error) {
	uc.writeMu.Lock()
	defer uc.writeMu.Unlock()

	uc.mu.Lock()
	if err := uc.state.RequireIdle(); requireIdle && err != nil {
		view := domain.NewStateView(uc.state, uc.persistence)
		uc.mu.Unlock()
		return view, err
	}
	candidate := apply(uc.state)
	uc.mu.Unlock()

	if err := uc.store.Save(ctx, candidate); err != nil {
		return uc.Snapshot(), fmt.Errorf("persist workspace: %w", err)
	}

	uc.mu.Lock()
	uc.state = candidate
	advanced := candidate.Revision > uc.savedRevision
	if advanced {
		uc.savedRevision = candidate.Revision
	}
	uc.broadcastLocked(domain.EventState)
	view := domain.NewStateView(uc.state, uc.persistence)
	uc.mu.Unlock()

	if advanced {
		uc.publishRevision(ctx, candidate)
	}
	return view, nil
}

func (uc *WorkspaceUseCase) editInPlace(apply transition) (domain.StateView, error) {
	uc.writeMu.Lock()
	defer uc.writeMu.Unlock()

	uc.mu.Lock()
	if err := uc.state.RequireIdle(); err != nil {
		view := domain.NewStateView(uc.state, uc.persistence)
		uc.mu.Unlock()
		return view, err
	}
	before := uc.state.Revision
	uc.state = apply(uc.state)
	changed := uc.state.Revision != before
	if changed {
		uc.broadcastLocked(domain.EventState)
	}
	view := domain.NewStateView(uc.state, uc.persistence)
	uc.mu.Unlock()

	if changed {
		uc.autosave.Touch()
	}
	return view, nil
}

// flush writes the latest state when it is ahead of the store.
func (uc *WorkspaceUseCase) flush() bool {
	ws, ok := uc.saveLatest()
	if ok {
		uc.publishRevision(context.Background(), ws)
	}
	return ok
}

func (uc *WorkspaceUseCase) saveLatest() (domain.Workspace, bool) {
	uc.writeMu.Lock()
	defer uc.writeMu.Unlock()

	uc.mu.Lock()
	ws := uc.state
	if ws.Revision <= uc.savedRevision {
		uc.mu.Unlock()
		return ws, false
	}
	uc.setPersistenceLocked(domain.PersistenceSaving)
	uc.mu.Unlock()

	ctx := context.Background()
	err := uc.store.Save(ctx, ws)
	if uc.observer != nil {
		uc.observer.ObserveAutosaveFlush(err)
	}
	if err != nil {
		slog.Error("autosave_flush",
			"workspace_id", uc.cfg.WorkspaceID,
			"revision", ws.Revision,
			"error", err.Error(),
		)
		uc.setPersistence(domain.PersistenceIdle)
		return ws, false
	}

	uc.mu.Lock()
	if ws.Revision > uc.savedRevision {
		uc.savedRevision = ws.Revision
	}
	uc.mu.Unlock()

	slog.Info("autosave_flush", "workspace_id", uc.cfg.WorkspaceID, "revision", ws.Revision)
	return ws, true
}

func (uc *WorkspaceUseCase) publishRevision(ctx context.Context, ws domain.Workspace) {
	if uc.publisher == nil {
		return
	}
	event := domain.RevisionEvent{
		ID:          uuid.NewString(),
		WorkspaceID: uc.cfg.WorkspaceID,
		Revision:    ws.Revision,
		Origin:      domain.EncodeOrigin(ws.Origin),
		Document:    ws.Document,
		OccurredAt:  uc.now(),
	}
	if err := uc.publisher.PublishRevision(ctx, event); err != nil {
		slog.Warn("revision_publish_failed",
			"workspace_id", uc.cfg.WorkspaceID,
			"revision", ws.Revision,
			"error", err.Error(),
		)
	}
}

func (uc *WorkspaceUseCase) requireInstruction(ctx context.Context, instruction string) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		return "", domain.NewUserError(domain.ErrInvalidInput, msgEmptyInstruction, nil)
	}
	if _, err := uc.SetInstruction(ctx, instruction); err != nil {
		return "", err
	}
	return instruction, nil
}

func (uc *WorkspaceUseCase) emitPreview() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.broadcastLocked(domain.EventPreview)
}

func (uc *WorkspaceUseCase) setPersistence(status domain.PersistenceStatus) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.setPersistenceLocked(status)
}

func (uc *WorkspaceUseCase) setPersistenceLocked(status domain.PersistenceStatus) {
	if uc.persistence == status {
		return
	}
	uc.persistence = status
	uc.broadcastLocked(domain.EventPersistence)
}

func (uc *WorkspaceUseCase) broadcastLocked(eventType domain.WorkspaceEventType) {
	uc.hub.broadcast(uc.eventLocked(eventType))
}

func (uc *WorkspaceUseCase) eventLocked(eventType domain.WorkspaceEventType) domain.WorkspaceEvent {
	return domain.WorkspaceEvent{Type: eventType, State: domain.NewStateView(uc.state, uc.persistence)}
}

func (uc *WorkspaceUseCase) observe(ctx context.Context, op domain.OperationStatus, startedAt time.Time, err error) {
	outcome := "success"
	level := slog.LevelInfo
	if err != nil {
		outcome = "error"
		level = slog.LevelWarn
	}
	duration := time.Since(startedAt)
	if uc.observer != nil {
		uc.observer.ObserveOperation(string(op), outcome, duration)
	}

	attrs := []any{
		"workspace_id", uc.cfg.WorkspaceID,
		"operation", string(op),
		"outcome", outcome,
		"duration_ms", duration.Milliseconds(),
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	slog.Log(ctx, level, "workspace_operation", attrs...)
}

// acceptReply unwraps a fenced reply and normalizes its layout.
func acceptReply(reply string) (string, error) {
	extracted := markup.ExtractFenced(reply)
	if strings.TrimSpace(extracted) == "" {
		return "", domain.NewUserError(domain.ErrEmptyResponse, msgEmptyResponse, nil)
	}
	return markup.Format(extracted), nil
}

// generatorError keeps temporary and caller-facing failures as they are and
// reports everything else as an upstream failure.
func generatorError(err error, message, op string) error {
	var userErr *domain.UserError
	switch {
	case errors.As(err, &userErr):
		return err
	case domain.IsKind(err, domain.ErrTemporary):
		return domain.NewUserError(domain.ErrTemporary, msgUnavailable, err)
	case errors.Is(err, context.Canceled):
		return domain.WrapError(domain.ErrTemporary, op, err)
	default:
		return domain.NewUserError(domain.ErrUpstream, message, err)
	}
}

var _ ports.WorkspaceService = (*WorkspaceUseCase)(nil)
