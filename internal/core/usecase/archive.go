package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/devgen-studio/internal/core/domain"
	"github.com/kirillkom/devgen-studio/internal/core/ports"
)

// ArchiveRevisionUseCase writes each accepted revision as two objects: the
// raw document and a JSON manifest describing it.
type ArchiveRevisionUseCase struct {
	storage ports.ObjectStorage
}

func NewArchiveRevisionUseCase(storage ports.ObjectStorage) *ArchiveRevisionUseCase {
	return &ArchiveRevisionUseCase{storage: storage}
}

func (uc *ArchiveRevisionUseCase) Archive(ctx context.Context, event domain.RevisionEvent) error {
	if event.WorkspaceID == "" || event.Revision == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "archive revision", fmt.Errorf("event %q lacks workspace or revision", event.ID))
	}

	prefix := RevisionKeyPrefix(event.WorkspaceID, event.Revision)
	if err := uc.storage.PutObject(ctx, prefix+"/index.html", []byte(event.Document), "text/html; charset=utf-8"); err != nil {
		return fmt.Errorf("store revision document: %w", err)
	}

	manifest, err := json.Marshal(revisionManifest{
		ID:          event.ID,
		WorkspaceID: event.WorkspaceID,
		Revision:    event.Revision,
		Origin:      event.Origin,
		OriginLabel: describeRecord(event.Origin),
		Bytes:       len(event.Document),
		OccurredAt:  event.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("marshal revision manifest: %w", err)
	}
	if err := uc.storage.PutObject(ctx, prefix+"/manifest.json", manifest, "application/json"); err != nil {
		return fmt.Errorf("store revision manifest: %w", err)
	}
	return nil
}

func RevisionKeyPrefix(workspaceID string, revision uint64) string {
	return fmt.Sprintf("%s/revisions/%08d", workspaceID, revision)
}

type revisionManifest struct {
	ID          string              `json:"id"`
	WorkspaceID string              `json:"workspace_id"`
	Revision    uint64              `json:"revision"`
	Origin      domain.OriginRecord `json:"origin"`
	OriginLabel string              `json:"origin_label"`
	Bytes       int                 `json:"bytes"`
	OccurredAt  string              `json:"occurred_at"`
}

func describeRecord(record domain.OriginRecord) string {
	origin, err := domain.DecodeOrigin(record)
	if err != nil {
		return string(record.Type)
	}
	return domain.DescribeOrigin(origin)
}

var _ ports.RevisionArchiver = (*ArchiveRevisionUseCase)(nil)
