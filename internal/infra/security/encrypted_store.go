package security

import (
	"context"
	"fmt"
	"strings"

	"void-ai-chat/internal/domain/ports/repository"
)

const sealedPrefix = "enc:v1:"

var _ repository.KeyValueStore = (*EncryptedStore)(nil)

// EncryptedStore seals values before they reach the inner store.
// Values written before encryption was enabled are returned as-is.
type EncryptedStore struct {
	inner  repository.KeyValueStore
	sealer *Sealer
}

func NewEncryptedStore(inner repository.KeyValueStore, sealer *Sealer) *EncryptedStore {
	return &EncryptedStore{inner: inner, sealer: sealer}
}

func (s *EncryptedStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, found, err := s.inner.Get(ctx, key)
	if err != nil || !found {
		return v, found, err
	}
	body, sealed := strings.CutPrefix(v, sealedPrefix)
	if !sealed {
		return v, true, nil
	}
	pt, err := s.sealer.Open(body, key)
	if err != nil {
		return "", false, fmt.Errorf("open %q: %w", key, err)
	}
	return pt, true, nil
}

func (s *EncryptedStore) Set(ctx context.Context, key, value string) error {
	ct, err := s.sealer.Seal(value, key)
	if err != nil {
		return fmt.Errorf("seal %q: %w", key, err)
	}
	return s.inner.Set(ctx, key, sealedPrefix+ct)
}

func (s *EncryptedStore) Close() error { return s.inner.Close() }
