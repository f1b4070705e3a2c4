package ports

import (
	"context"
	"time"

	"github.com/kirillkom/devgen-studio/internal/core/domain"
)

// MarkupGenerator produces page markup from natural-language instructions.
// Replies are returned raw; fenced blocks are unwrapped by the caller.
type MarkupGenerator interface {
	Generate(ctx context.Context, instruction string) (string, error)
	Refine(ctx context.Context, instruction, currentMarkup string) (string, error)
}

// RepositoryFetcher downloads the entry file of a public repository.
type RepositoryFetcher interface {
	FetchEntry(ctx context.Context, repoPath string) (string, error)
}

// KeyValueStore is the raw persistence primitive. Get returns
// domain.ErrNotFound for absent keys.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// WorkspaceStore persists workspace snapshots across restarts.
type WorkspaceStore interface {
	Load(ctx context.Context) (domain.Workspace, error)
	Save(ctx context.Context, ws domain.Workspace) error
}

// RevisionPublisher announces accepted document revisions.
type RevisionPublisher interface {
	PublishRevision(ctx context.Context, event domain.RevisionEvent) error
}

// RevisionSubscriber consumes revision announcements until ctx is done.
type RevisionSubscriber interface {
	SubscribeRevisions(ctx context.Context, handler func(context.Context, domain.RevisionEvent) error) error
}

// ObjectStorage stores archived revision blobs.
type ObjectStorage interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// OperationObserver receives one observation per settled workspace operation.
type OperationObserver interface {
	ObserveOperation(operation, outcome string, duration time.Duration)
	ObserveAutosaveFlush(err error)
}
