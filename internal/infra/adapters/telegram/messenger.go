package telegram

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"void-ai-chat/internal/domain/ports/adapter"
)

var _ adapter.Messenger = (*BotMessenger)(nil)

var errBadDataURI = errors.New("telegram: photo is not a base64 data uri")

// BotMessenger sends through the Bot API.
type BotMessenger struct {
	bot *tgbotapi.BotAPI
}

func NewBotMessenger(bot *tgbotapi.BotAPI) *BotMessenger {
	return &BotMessenger{bot: bot}
}

func (m *BotMessenger) SendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sent, err := m.bot.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (m *BotMessenger) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}

func (m *BotMessenger) SendPhoto(ctx context.Context, chatID int64, dataURI, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := decodeDataURI(dataURI)
	if err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "image.png", Bytes: raw})
	photo.Caption = caption
	_, err = m.bot.Send(photo)
	return err
}

func decodeDataURI(uri string) ([]byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, errBadDataURI
	}
	_, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return nil, errBadDataURI
	}
	return base64.StdEncoding.DecodeString(payload)
}
