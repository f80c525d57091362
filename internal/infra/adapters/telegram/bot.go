package telegram

import (
	"context"
	"errors"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"void-ai-chat/internal/config"
	"void-ai-chat/internal/domain"
	"void-ai-chat/internal/domain/ports/adapter"
	"void-ai-chat/internal/infra/logging"
	"void-ai-chat/internal/infra/metrics"
	"void-ai-chat/internal/infra/i18n"
	red "void-ai-chat/internal/infra/redis"
	"void-ai-chat/internal/infra/worker"
	"void-ai-chat/internal/usecase"
)

const (
	messagesPerMinute = 20
	defaultThrottle   = time.Second
)

// Limiter is satisfied by redis.RateLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

var _ adapter.Publisher = (*Bot)(nil)

// Bot is the Telegram surface for the single owner chat. Incoming text starts
// turns; published events are mirrored into the chat by editing one Telegram
// message per assistant reply.
type Bot struct {
	out      adapter.Messenger
	tr       *i18n.Translator
	ownerID  int64
	pool     *worker.Pool
	limiter  Limiter
	throttle time.Duration
	log      *zerolog.Logger

	uc usecase.ChatUseCase

	mu   sync.Mutex
	live map[string]*liveReply
}

func NewBot(out adapter.Messenger, tr *i18n.Translator, cfg config.TelegramConfig, pool *worker.Pool, limiter Limiter, log *zerolog.Logger) *Bot {
	return &Bot{
		out:      out,
		tr:       tr,
		ownerID:  cfg.OwnerID,
		pool:     pool,
		limiter:  limiter,
		throttle: defaultThrottle,
		log:      log,
		live:     make(map[string]*liveReply),
	}
}

// Run consumes updates until ctx ends or the channel closes.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel, uc usecase.ChatUseCase) error {
	b.mu.Lock()
	b.uc = uc
	b.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if err := b.handleUpdate(ctx, up); err != nil {
				b.log.Warn().Err(err).Msg("telegram update failed")
			}
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, up tgbotapi.Update) error {
	msg := up.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}
	ctx = logging.WithTgID(ctx, msg.Chat.ID)
	if msg.Chat.ID != b.ownerID {
		metrics.IncTelegramRejected()
		_, err := b.out.SendMessage(ctx, msg.Chat.ID, b.tr.T("private"))
		return err
	}
	if !b.allow(ctx, msg.Chat.ID) {
		_, err := b.out.SendMessage(ctx, msg.Chat.ID, b.tr.T("slow_down"))
		return err
	}

	if msg.IsCommand() {
		metrics.IncTelegramCommand("/" + msg.Command())
		if h, ok := b.commandRoutes()[msg.Command()]; ok {
			return h(ctx, msg)
		}
		return b.reply(ctx, b.tr.T("unknown_command"))
	}

	metrics.IncTelegramCommand("message")
	if _, err := b.uc.StartMessage(ctx, msg.Text); err != nil {
		return b.replyTurnError(ctx, err)
	}
	return nil
}

func (b *Bot) allow(ctx context.Context, chatID int64) bool {
	if b.limiter == nil {
		return true
	}
	ok, err := b.limiter.Allow(ctx, red.ChatCommandKey(chatID, "message"), messagesPerMinute, time.Minute)
	if err != nil {
		// limiter outage must not lock the owner out
		logging.With(ctx, b.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	return ok
}

func (b *Bot) replyTurnError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage):
		return nil
	case errors.Is(err, domain.ErrTurnInFlight):
		return b.reply(ctx, b.tr.T("busy"))
	case errors.Is(err, domain.ErrInsufficientCredits), errors.Is(err, domain.ErrPremiumModel):
		// the use case already published a notice
		return nil
	default:
		return b.reply(ctx, b.tr.T("generic_error"))
	}
}

func (b *Bot) reply(ctx context.Context, text string) error {
	_, err := b.out.SendMessage(ctx, b.ownerID, text)
	return err
}
