package adapter

import "context"

// Messenger delivers chat output to a Telegram chat.
type Messenger interface {
	// SendMessage returns the id of the sent message so it can be edited later.
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error
	// SendPhoto accepts a base64 data URI.
	SendPhoto(ctx context.Context, chatID int64, dataURI, caption string) error
}
