package telegram

import (
	"context"
	"time"
	"unicode/utf8"

	"void-ai-chat/internal/domain/model"
	"void-ai-chat/internal/domain/ports/adapter"
	"void-ai-chat/internal/infra/worker"
)

const (
	maxMessageRunes = 4096
	typingText      = "…"
)

// liveReply tracks one assistant message mirrored into Telegram.
type liveReply struct {
	content string
	image   string
	final   bool

	tgID     int
	sent     string
	lastEdit time.Time

	pending bool // a flush task is queued
	busy    bool // a flush task is running
	again   bool // state changed while busy
}

// Publish mirrors assistant replies and notices. Sends happen on the worker pool;
// a flush always reads the latest content, so dropped intermediate updates are harmless.
func (b *Bot) Publish(ev adapter.Event) {
	switch ev.Kind {
	case adapter.EventNotice:
		notice := ev.Notice
		b.submit(func(ctx context.Context) error {
			_, err := b.out.SendMessage(ctx, b.ownerID, notice)
			return err
		})
	case adapter.EventMessage:
		if ev.Message != nil && ev.Message.Role == model.RoleAssistant {
			b.track(*ev.Message)
		}
	}
}

func (b *Bot) track(m model.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.live[m.ID]
	if !ok {
		// only replies seen from their placeholder onward are mirrored
		if !m.IsStreaming {
			return
		}
		r = &liveReply{}
		b.live[m.ID] = r
	}
	r.content = m.Content
	r.image = m.ImageURL
	r.final = !m.IsStreaming

	due := r.final || r.tgID == 0 || time.Since(r.lastEdit) >= b.throttle
	if due && !r.pending {
		r.pending = true
		id := m.ID
		b.submit(func(ctx context.Context) error { return b.flush(ctx, id) })
	}
}

func (b *Bot) submit(task worker.Task) {
	if err := b.pool.Submit(task); err != nil {
		b.log.Warn().Err(err).Msg("telegram mirror dropped an update")
	}
}

func (b *Bot) flush(ctx context.Context, id string) error {
	for {
		b.mu.Lock()
		r, ok := b.live[id]
		if !ok {
			b.mu.Unlock()
			return nil
		}
		if r.busy {
			r.again = true
			b.mu.Unlock()
			return nil
		}
		r.busy, r.again, r.pending = true, false, false
		view := *r
		b.mu.Unlock()

		err := b.push(ctx, &view)

		b.mu.Lock()
		r.tgID, r.sent, r.lastEdit, r.busy = view.tgID, view.sent, time.Now(), false
		finalQueued := r.final && !view.final
		again := r.again || finalQueued
		if view.final {
			delete(b.live, id)
		}
		b.mu.Unlock()

		if err != nil {
			if !finalQueued {
				return err
			}
			// an intermediate edit failed but the final text is known; push it anyway
			b.log.Warn().Err(err).Str("message_id", id).Msg("telegram mirror edit failed, sending final reply")
			continue
		}
		if !again {
			return nil
		}
	}
}

func (b *Bot) push(ctx context.Context, r *liveReply) error {
	text := r.content
	switch {
	case text == "" && r.final:
		text = b.tr.T("empty_reply")
	case text == "":
		text = typingText
	}
	chunks := splitRunes(text, maxMessageRunes)
	if !r.final {
		// intermediate edits show the head only
		chunks = chunks[:1]
	}

	if r.tgID == 0 {
		id, err := b.out.SendMessage(ctx, b.ownerID, chunks[0])
		if err != nil {
			return err
		}
		r.tgID, r.sent = id, chunks[0]
	} else if chunks[0] != r.sent {
		if err := b.out.EditMessage(ctx, b.ownerID, r.tgID, chunks[0]); err != nil {
			return err
		}
		r.sent = chunks[0]
	}
	if !r.final {
		return nil
	}
	for _, c := range chunks[1:] {
		if _, err := b.out.SendMessage(ctx, b.ownerID, c); err != nil {
			return err
		}
	}
	if r.image != "" {
		return b.out.SendPhoto(ctx, b.ownerID, r.image, "")
	}
	return nil
}

func splitRunes(s string, limit int) []string {
	if utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}
	var out []string
	runes := []rune(s)
	for len(runes) > limit {
		out = append(out, string(runes[:limit]))
		runes = runes[limit:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
