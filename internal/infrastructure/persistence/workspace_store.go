// Package persistence maps the workspace onto individual JSON values in a
// key-value store.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kirillkom/devgen-studio/internal/core/domain"
	"github.com/kirillkom/devgen-studio/internal/core/ports"
)

const (
	KeyCode         = "code"
	KeyPreviousCode = "previousCode"
	KeyPrompt       = "prompt"
	KeyTheme        = "theme"
	KeyCodeSource   = "codeSource"
	KeyRevision     = "revision"
)

type WorkspaceStore struct {
	kv        ports.KeyValueStore
	namespace string
}

func NewWorkspaceStore(kv ports.KeyValueStore, workspaceID string) *WorkspaceStore {
	if workspaceID == "" {
		workspaceID = "default"
	}
	return &WorkspaceStore{kv: kv, namespace: workspaceID}
}

// Load reads every key independently. An absent key, or one whose value
// does not decode to the expected shape, keeps its initial value.
func (s *WorkspaceStore) Load(ctx context.Context) (domain.Workspace, error) {
	ws := domain.NewWorkspace()

	if err := s.load(ctx, KeyCode, decodeString(&ws.Document)); err != nil {
		return domain.Workspace{}, err
	}
	if err := s.load(ctx, KeyPreviousCode, decodeString(&ws.PriorDocument)); err != nil {
		return domain.Workspace{}, err
	}
	if err := s.load(ctx, KeyPrompt, decodeString(&ws.Instruction)); err != nil {
		return domain.Workspace{}, err
	}
	if err := s.load(ctx, KeyTheme, func(raw []byte) error {
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}
		theme, err := domain.ParseTheme(value)
		if err != nil {
			return err
		}
		ws.Theme = theme
		return nil
	}); err != nil {
		return domain.Workspace{}, err
	}
	if err := s.load(ctx, KeyCodeSource, func(raw []byte) error {
		var record domain.OriginRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return err
		}
		origin, err := domain.DecodeOrigin(record)
		if err != nil {
			return err
		}
		ws.Origin = origin
		return nil
	}); err != nil {
		return domain.Workspace{}, err
	}
	if err := s.load(ctx, KeyRevision, func(raw []byte) error {
		return json.Unmarshal(raw, &ws.Revision)
	}); err != nil {
		return domain.Workspace{}, err
	}

	return ws, nil
}

func (s *WorkspaceStore) Save(ctx context.Context, ws domain.Workspace) error {
	values := []struct {
		key   string
		value any
	}{
		{KeyCode, ws.Document},
		{KeyPreviousCode, ws.PriorDocument},
		{KeyPrompt, ws.Instruction},
		{KeyTheme, ws.Theme},
		{KeyCodeSource, domain.EncodeOrigin(ws.Origin)},
		{KeyRevision, ws.Revision},
	}
	for _, v := range values {
		raw, err := json.Marshal(v.value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", v.key, err)
		}
		if err := s.kv.Put(ctx, s.key(v.key), raw); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

func (s *WorkspaceStore) load(ctx context.Context, key string, decode func([]byte) error) error {
	raw, err := s.kv.Get(ctx, s.key(key))
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load %s: %w", key, err)
	}
	if err := decode(raw); err != nil {
		slog.Warn("workspace_key_invalid",
			"workspace_id", s.namespace,
			"key", key,
			"error", err.Error(),
		)
	}
	return nil
}

func decodeString(dst *string) func([]byte) error {
	return func(raw []byte) error {
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}
		*dst = value
		return nil
	}
}

func (s *WorkspaceStore) key(name string) string {
	return s.namespace + "/" + name
}

var _ ports.WorkspaceStore = (*WorkspaceStore)(nil)
