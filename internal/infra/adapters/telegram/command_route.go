package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"void-ai-chat/internal/domain"
	"void-ai-chat/internal/domain/model"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

func (b *Bot) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":     b.handleHelpCommand,
		"help":      b.handleHelpCommand,
		"new":       b.handleNewCommand,
		"credits":   b.handleCreditsCommand,
		"architect": b.handleArchitectCommand,
		"model":     b.handleModelCommand,
		"models":    b.handleModelsCommand,
	}
}

func (b *Bot) handleHelpCommand(ctx context.Context, _ *tgbotapi.Message) error {
	return b.reply(ctx, b.tr.T("help"))
}

func (b *Bot) handleNewCommand(ctx context.Context, _ *tgbotapi.Message) error {
	b.uc.NewChat(ctx)
	return b.reply(ctx, b.tr.T("new_chat"))
}

func (b *Bot) handleCreditsCommand(ctx context.Context, _ *tgbotapi.Message) error {
	p := b.uc.Snapshot().Profile
	return b.reply(ctx, b.tr.T("credits", p.Credits, p.Tier))
}

func (b *Bot) handleArchitectCommand(ctx context.Context, message *tgbotapi.Message) error {
	switch strings.ToLower(strings.TrimSpace(message.CommandArguments())) {
	case "on":
		b.uc.SetArchitectMode(ctx, true)
		return b.reply(ctx, b.tr.T("architect_on"))
	case "off":
		b.uc.SetArchitectMode(ctx, false)
		return b.reply(ctx, b.tr.T("architect_off"))
	default:
		state := "off"
		if b.uc.Snapshot().Architect {
			state = "on"
		}
		return b.reply(ctx, b.tr.T("architect_status", state))
	}
}

func (b *Bot) handleModelCommand(ctx context.Context, message *tgbotapi.Message) error {
	id := strings.TrimSpace(message.CommandArguments())
	if id == "" {
		return b.handleModelsCommand(ctx, message)
	}
	err := b.uc.SetModel(ctx, id)
	switch {
	case err == nil:
		info, _ := model.LookupModel(id)
		return b.reply(ctx, b.tr.T("model_set", info.Name))
	case errors.Is(err, domain.ErrPremiumModel):
		return b.reply(ctx, b.tr.T("model_premium"))
	case errors.Is(err, domain.ErrUnknownModel):
		return b.reply(ctx, b.tr.T("model_unknown"))
	default:
		return b.reply(ctx, b.tr.T("generic_error"))
	}
}

func (b *Bot) handleModelsCommand(ctx context.Context, _ *tgbotapi.Message) error {
	current := b.uc.Snapshot().ModelID
	var sb strings.Builder
	for _, m := range b.uc.ListModels() {
		mark := "  "
		if m.ID == current {
			mark = "> "
		}
		sb.WriteString(mark + m.ID + " - " + m.Name)
		if m.Badge != "" {
			sb.WriteString(" [" + m.Badge + "]")
		}
		if m.IsPremium {
			sb.WriteString(" (pro)")
		}
		sb.WriteString("\n")
	}
	return b.reply(ctx, strings.TrimRight(sb.String(), "\n"))
}
