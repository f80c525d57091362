//go:build !integration

package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"void-ai-chat/internal/config"
	"void-ai-chat/internal/domain"
	"void-ai-chat/internal/domain/model"
	"void-ai-chat/internal/domain/ports/adapter"
	"void-ai-chat/internal/infra/i18n"
	"void-ai-chat/internal/infra/worker"
	"void-ai-chat/internal/usecase"
)

const owner int64 = 42

func newTestBot(t *testing.T, uc usecase.ChatUseCase, limiter Limiter) (*Bot, *mockMessenger) {
	t.Helper()
	l := zerolog.Nop()
	pool := worker.NewPool(1, &l)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(cancel)

	tr, err := i18n.Load("en")
	if err != nil {
		t.Fatal(err)
	}
	out := &mockMessenger{}
	b := NewBot(out, tr, config.TelegramConfig{OwnerID: owner}, pool, limiter, &l)
	b.throttle = 0
	b.uc = uc
	return b, out
}

func TestHandleUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("should reject chats other than the owner", func(t *testing.T) {
		called := false
		uc := &mockChatUC{StartMessageFunc: func(ctx context.Context, text string) (*usecase.Turn, error) {
			called = true
			return &usecase.Turn{}, nil
		}}
		b, out := newTestBot(t, uc, nil)
		_ = b.handleUpdate(ctx, textUpdate(99, "hello"))
		if called {
			t.Fatal("stranger must not start a turn")
		}
		if got := out.sent(); len(got) != 1 || got[0].ChatID != 99 {
			t.Fatalf("expected a refusal to the stranger, got %+v", got)
		}
	})

	t.Run("should start a turn from owner text", func(t *testing.T) {
		var got string
		uc := &mockChatUC{StartMessageFunc: func(ctx context.Context, text string) (*usecase.Turn, error) {
			got = text
			return &usecase.Turn{}, nil
		}}
		b, _ := newTestBot(t, uc, nil)
		if err := b.handleUpdate(ctx, textUpdate(owner, "build me a site")); err != nil {
			t.Fatal(err)
		}
		if got != "build me a site" {
			t.Fatalf("unexpected text %q", got)
		}
	})

	t.Run("should tell the owner when a turn is in flight", func(t *testing.T) {
		uc := &mockChatUC{StartMessageFunc: func(ctx context.Context, text string) (*usecase.Turn, error) {
			return nil, domain.ErrTurnInFlight
		}}
		b, out := newTestBot(t, uc, nil)
		_ = b.handleUpdate(ctx, textUpdate(owner, "again"))
		if got := out.sent(); len(got) != 1 || !strings.Contains(got[0].Text, "previous message") {
			t.Fatalf("unexpected reply %+v", got)
		}
	})

	t.Run("should toggle architect mode", func(t *testing.T) {
		var on bool
		uc := &mockChatUC{SetArchitectFunc: func(ctx context.Context, v bool) { on = v }}
		b, _ := newTestBot(t, uc, nil)
		_ = b.handleUpdate(ctx, textUpdate(owner, "/architect on"))
		if !on {
			t.Fatal("architect mode not enabled")
		}
	})

	t.Run("should explain premium models", func(t *testing.T) {
		uc := &mockChatUC{SetModelFunc: func(ctx context.Context, id string) error { return domain.ErrPremiumModel }}
		b, out := newTestBot(t, uc, nil)
		_ = b.handleUpdate(ctx, textUpdate(owner, "/model gpt-4"))
		if got := out.sent(); len(got) != 1 || !strings.Contains(got[0].Text, "pro tier") {
			t.Fatalf("unexpected reply %+v", got)
		}
	})

	t.Run("should report credits", func(t *testing.T) {
		uc := &mockChatUC{snapshot: usecase.Snapshot{Profile: model.NewUserProfile("User", 7, model.TierPro)}}
		b, out := newTestBot(t, uc, nil)
		_ = b.handleUpdate(ctx, textUpdate(owner, "/credits"))
		if got := out.sent(); len(got) != 1 || !strings.Contains(got[0].Text, "Credits: 7") {
			t.Fatalf("unexpected reply %+v", got)
		}
	})

	t.Run("should throttle when the limiter denies", func(t *testing.T) {
		called := false
		uc := &mockChatUC{StartMessageFunc: func(ctx context.Context, text string) (*usecase.Turn, error) {
			called = true
			return &usecase.Turn{}, nil
		}}
		lim := &mockLimiter{AllowFunc: func(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
			return false, nil
		}}
		b, _ := newTestBot(t, uc, lim)
		_ = b.handleUpdate(ctx, textUpdate(owner, "hi"))
		if called {
			t.Fatal("denied update must not start a turn")
		}
	})

	t.Run("should fail open when the limiter is down", func(t *testing.T) {
		called := false
		uc := &mockChatUC{StartMessageFunc: func(ctx context.Context, text string) (*usecase.Turn, error) {
			called = true
			return &usecase.Turn{}, nil
		}}
		lim := &mockLimiter{AllowFunc: func(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
			return false, errors.New("redis down")
		}}
		b, _ := newTestBot(t, uc, lim)
		_ = b.handleUpdate(ctx, textUpdate(owner, "hi"))
		if !called {
			t.Fatal("limiter outage must not block the owner")
		}
	})
}

func assistant(id, content string, streaming bool) adapter.Event {
	return adapter.Event{Kind: adapter.EventMessage, Message: &model.Message{
		ID: id, Role: model.RoleAssistant, Content: content, IsStreaming: streaming,
	}}
}

func TestMirror(t *testing.T) {
	t.Run("should edit one message until the reply is final", func(t *testing.T) {
		b, out := newTestBot(t, &mockChatUC{}, nil)
		b.Publish(assistant("m1", "", true))
		b.Publish(assistant("m1", "Hel", true))
		b.Publish(assistant("m1", "Hello!", false))

		ok := out.waitFor(func(log []sentMsg) bool {
			return len(log) > 0 && log[len(log)-1].Text == "Hello!"
		})
		if !ok {
			t.Fatalf("final text never mirrored: %+v", out.sent())
		}
		sends := 0
		for _, m := range out.sent() {
			if !m.Edit {
				sends++
			}
		}
		if sends != 1 {
			t.Fatalf("expected a single sent message, got %d: %+v", sends, out.sent())
		}
	})

	t.Run("should ignore replies first seen after they finished", func(t *testing.T) {
		b, out := newTestBot(t, &mockChatUC{}, nil)
		b.Publish(assistant("old", "done long ago", false))
		b.Publish(adapter.Event{Kind: adapter.EventNotice, Notice: "marker"})
		out.waitFor(func(log []sentMsg) bool { return len(log) > 0 })
		if got := out.sent(); len(got) != 1 || got[0].Text != "marker" {
			t.Fatalf("unexpected mirror traffic %+v", got)
		}
	})

	t.Run("should send the picture for image replies", func(t *testing.T) {
		b, out := newTestBot(t, &mockChatUC{}, nil)
		b.Publish(assistant("img", "", true))
		b.Publish(adapter.Event{Kind: adapter.EventMessage, Message: &model.Message{
			ID: "img", Role: model.RoleAssistant, Content: "Here is your image of: a cat",
			ImageURL: "data:image/png;base64,AAAA",
		}})
		ok := out.waitFor(func(log []sentMsg) bool {
			return len(log) > 0 && log[len(log)-1].Photo
		})
		if !ok {
			t.Fatalf("photo not sent: %+v", out.sent())
		}
	})

	t.Run("should show a marker for an empty final reply", func(t *testing.T) {
		b, out := newTestBot(t, &mockChatUC{}, nil)
		b.Publish(assistant("e", "", true))
		b.Publish(assistant("e", "", false))
		ok := out.waitFor(func(log []sentMsg) bool {
			return len(log) > 0 && log[len(log)-1].Text == "(empty response)"
		})
		if !ok {
			t.Fatalf("empty marker missing: %+v", out.sent())
		}
	})
}

func TestMirrorFinalAfterFailedEdit(t *testing.T) {
	t.Run("should still send the final reply when an intermediate edit fails", func(t *testing.T) {
		b, out := newTestBot(t, &mockChatUC{}, nil)
		b.mu.Lock()
		b.live["m1"] = &liveReply{content: "partial", tgID: 7, sent: "p"}
		b.mu.Unlock()

		failed := false
		out.EditHook = func(messageID int, text string) error {
			if text == "partial" && !failed {
				failed = true
				// the reply finishes while the edit is on the wire
				b.track(model.Message{ID: "m1", Role: model.RoleAssistant, Content: "complete answer"})
				return errors.New("telegram: too many requests")
			}
			return nil
		}

		if err := b.flush(context.Background(), "m1"); err != nil {
			t.Fatalf("flush should recover once the final text is known, got %v", err)
		}
		ok := out.waitFor(func(log []sentMsg) bool {
			return len(log) > 0 && log[len(log)-1].Edit && log[len(log)-1].Text == "complete answer"
		})
		if !ok {
			t.Fatalf("final reply never mirrored: %+v", out.sent())
		}
		b.mu.Lock()
		_, still := b.live["m1"]
		b.mu.Unlock()
		if still {
			t.Fatal("finished reply must stop being tracked")
		}
	})
}

func TestSplitRunes(t *testing.T) {
	parts := splitRunes(strings.Repeat("é", 10), 4)
	if len(parts) != 3 || parts[2] != "éé" {
		t.Fatalf("unexpected split %q", parts)
	}
	if got := splitRunes("short", 4096); len(got) != 1 {
		t.Fatalf("unexpected split %q", got)
	}
}

func TestDecodeDataURI(t *testing.T) {
	b, err := decodeDataURI("data:image/png;base64,AAAA")
	if err != nil || len(b) != 3 {
		t.Fatalf("got %v %v", b, err)
	}
	if _, err := decodeDataURI("https://example.com/cat.png"); err == nil {
		t.Fatal("expected error for a plain url")
	}
}
