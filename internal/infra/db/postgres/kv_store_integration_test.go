//go:build integration

package postgres

import (
	"context"
	"testing"
)

func TestKVStoreIntegration(t *testing.T) {
	ctx := context.Background()
	cleanup(t)
	s := NewKVStore(testPool, nil)

	t.Run("should miss before first write", func(t *testing.T) {
		if _, found, err := s.Get(ctx, "void-chats"); err != nil || found {
			t.Fatalf("found=%v err=%v", found, err)
		}
	})

	t.Run("should overwrite on second write", func(t *testing.T) {
		if err := s.Set(ctx, "void-chats", `[]`); err != nil {
			t.Fatal(err)
		}
		if err := s.Set(ctx, "void-chats", `[{"id":"a"}]`); err != nil {
			t.Fatal(err)
		}
		v, found, err := s.Get(ctx, "void-chats")
		if err != nil || !found || v != `[{"id":"a"}]` {
			t.Fatalf("got %q found=%v err=%v", v, found, err)
		}
	})

	t.Run("should be idempotent on schema", func(t *testing.T) {
		if err := s.EnsureSchema(ctx); err != nil {
			t.Fatal(err)
		}
	})
}
