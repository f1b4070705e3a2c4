package ports

import (
	"context"

	"github.com/kirillkom/devgen-studio/internal/core/domain"
)

// WorkspaceService is the inbound contract for the document orchestrator.
type WorkspaceService interface {
	Snapshot() domain.StateView
	Generate(ctx context.Context, instruction string) (domain.StateView, error)
	Refine(ctx context.Context, instruction string) (domain.StateView, error)
	ImportFile(ctx context.Context, filename, content string) (domain.StateView, error)
	ImportRemote(ctx context.Context, repositoryURL string) (domain.StateView, error)
	Clear(ctx context.Context) (domain.StateView, error)
	Edit(ctx context.Context, content string) (domain.StateView, error)
	Reformat(ctx context.Context) (domain.StateView, error)
	SetInstruction(ctx context.Context, text string) (domain.StateView, error)
	SetTheme(ctx context.Context, theme domain.Theme) (domain.StateView, error)
	Subscribe(ctx context.Context) <-chan domain.WorkspaceEvent
}

// RevisionArchiver is the inbound contract for the revision archive worker.
type RevisionArchiver interface {
	Archive(ctx context.Context, event domain.RevisionEvent) error
}
