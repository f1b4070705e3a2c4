// Package cache fronts a key-value store with an in-process LRU.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/devgen-studio/internal/core/ports"
)

// KVStore is a read-through, write-through cache. Misses in the backing
// store are not cached.
type KVStore struct {
	next  ports.KeyValueStore
	items *lru.Cache[string, []byte]
}

func NewKVStore(next ports.KeyValueStore, size int) (*KVStore, error) {
	if size <= 0 {
		size = 256
	}
	items, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &KVStore{next: next, items: items}, nil
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if value, ok := s.items.Get(key); ok {
		return clone(value), nil
	}
	value, err := s.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	s.items.Add(key, clone(value))
	return value, nil
}

func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.next.Put(ctx, key, value); err != nil {
		s.items.Remove(key)
		return err
	}
	s.items.Add(key, clone(value))
	return nil
}

func (s *KVStore) Len() int {
	return s.items.Len()
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

var _ ports.KeyValueStore = (*KVStore)(nil)
