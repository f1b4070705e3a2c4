package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/devgen-studio/internal/config"
	"github.com/kirillkom/devgen-studio/internal/core/domain"
	"github.com/kirillkom/devgen-studio/internal/core/ports"
	"github.com/kirillkom/devgen-studio/internal/core/usecase"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/queue/nats"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/resilience"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/storage/s3"
	"github.com/kirillkom/devgen-studio/internal/observability/metrics"
)

// Worker archives every published revision into object storage.
type Worker struct {
	Config config.Config

	Subscriber ports.RevisionSubscriber
	Archiver   ports.RevisionArchiver
	Metrics    *metrics.WorkerMetrics

	closeFns []func()
}

func NewWorker(_ context.Context, cfg config.Config) (*Worker, error) {
	if cfg.NATSURL == "" {
		return nil, fmt.Errorf("NATS_URL is required for the archive worker")
	}

	storage, err := newArchiveStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("init archive storage: %w", err)
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg))
	bus, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ClientName:         "devgen-studio-worker",
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init revision bus: %w", err)
	}

	return &Worker{
		Config:     cfg,
		Subscriber: bus,
		Archiver:   usecase.NewArchiveRevisionUseCase(storage),
		Metrics:    metrics.NewWorkerMetrics("worker"),
		closeFns:   []func(){bus.Close},
	}, nil
}

// Run blocks until ctx is done, archiving revisions as they arrive.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("worker_subscribed", "subject", w.Config.NATSSubject)
	return w.Subscriber.SubscribeRevisions(ctx, w.HandleRevision)
}

func (w *Worker) HandleRevision(ctx context.Context, event domain.RevisionEvent) error {
	startedAt := time.Now()
	w.Metrics.StartArchive()
	if !event.OccurredAt.IsZero() {
		w.Metrics.ObserveRevisionLag(startedAt.Sub(event.OccurredAt))
	}

	archiveCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	err := w.Archiver.Archive(archiveCtx, event)
	w.Metrics.FinishArchive(time.Since(startedAt), err)

	if err != nil {
		return err
	}
	slog.Info("revision_archived",
		"workspace_id", event.WorkspaceID,
		"revision", event.Revision,
		"duration_ms", time.Since(startedAt).Milliseconds(),
	)
	return nil
}

func (w *Worker) Close() {
	for i := len(w.closeFns) - 1; i >= 0; i-- {
		w.closeFns[i]()
	}
	w.closeFns = nil
}

func newArchiveStorage(cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.ArchiveBackend {
	case "s3":
		return s3.New(s3Config(cfg, "archive"))
	default:
		return localfs.New(cfg.ArchivePath)
	}
}
