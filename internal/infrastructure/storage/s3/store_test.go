package s3

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"

	"github.com/kirillkom/devgen-studio/internal/core/domain"
)

func TestNewValidatesConfig(t *testing.T) {
	cases := []Config{
		{},
		{Endpoint: "localhost:9000"},
		{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"},
	}
	for i, cfg := range cases {
		if _, err := New(cfg); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestObjectKeyAppliesPrefix(t *testing.T) {
	store, err := New(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "devgen", Prefix: "/studio/"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	key, err := store.objectKey("/default/code")
	if err != nil {
		t.Fatalf("objectKey() error: %v", err)
	}
	if key != "studio/default/code" {
		t.Fatalf("unexpected key %q", key)
	}
	if _, err := store.objectKey("  "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank key, got %v", err)
	}
}

func TestTranslateErrorMapsMissingKey(t *testing.T) {
	missing := minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}
	if err := translateError("default/code", missing); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	other := errors.New("connection reset")
	if err := translateError("default/code", other); domain.IsKind(err, domain.ErrNotFound) || !errors.Is(err, other) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}
