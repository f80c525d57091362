package repository

import (
	"context"

	"void-ai-chat/internal/domain/model"
)

// StateRepository persists the session list and the profile as whole records.
// Loads never fail: missing or malformed data yields the empty list or defaults.
// Saves are full overwrites.
type StateRepository interface {
	LoadChats(ctx context.Context) []model.ChatSession
	SaveChats(ctx context.Context, chats []model.ChatSession) error
	LoadProfile(ctx context.Context, defaults model.UserProfile) model.UserProfile
	SaveProfile(ctx context.Context, p model.UserProfile) error
}
