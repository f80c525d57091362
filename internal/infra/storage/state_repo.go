package storage

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"void-ai-chat/internal/domain"
	"void-ai-chat/internal/domain/model"
	"void-ai-chat/internal/domain/ports/repository"
	"void-ai-chat/internal/infra/metrics"
)

var _ repository.StateRepository = (*StateRepo)(nil)

const (
	chatsKey   = "chats"
	profileKey = "profile"
)

// StateRepo stores the session list and the profile as two JSON records.
type StateRepo struct {
	kv     repository.KeyValueStore
	prefix string
	log    *zerolog.Logger
}

func NewStateRepo(kv repository.KeyValueStore, prefix string, log *zerolog.Logger) *StateRepo {
	return &StateRepo{kv: kv, prefix: prefix, log: log}
}

func (r *StateRepo) ChatsKey() string   { return r.prefix + chatsKey }
func (r *StateRepo) ProfileKey() string { return r.prefix + profileKey }

func (r *StateRepo) LoadChats(ctx context.Context) []model.ChatSession {
	raw, ok := r.read(ctx, "load_chats", r.ChatsKey())
	if !ok {
		return []model.ChatSession{}
	}
	var chats []model.ChatSession
	if err := json.Unmarshal([]byte(raw), &chats); err != nil {
		r.fail("load_chats", err)
		return []model.ChatSession{}
	}
	if chats == nil {
		chats = []model.ChatSession{}
	}
	return chats
}

func (r *StateRepo) SaveChats(ctx context.Context, chats []model.ChatSession) error {
	if chats == nil {
		chats = []model.ChatSession{}
	}
	return r.write(ctx, "save_chats", r.ChatsKey(), chats)
}

// LoadProfile merges the stored record over defaults, so fields missing
// from older records keep their default values.
func (r *StateRepo) LoadProfile(ctx context.Context, defaults model.UserProfile) model.UserProfile {
	raw, ok := r.read(ctx, "load_profile", r.ProfileKey())
	if !ok {
		return defaults
	}
	p := defaults
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		r.fail("load_profile", err)
		return defaults
	}
	p.Normalize()
	return p
}

func (r *StateRepo) SaveProfile(ctx context.Context, p model.UserProfile) error {
	return r.write(ctx, "save_profile", r.ProfileKey(), p)
}

func (r *StateRepo) read(ctx context.Context, op, key string) (string, bool) {
	raw, found, err := r.kv.Get(ctx, key)
	if err != nil {
		r.fail(op, err)
		return "", false
	}
	return raw, found
}

func (r *StateRepo) write(ctx context.Context, op, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return r.fail(op, err)
	}
	if err := r.kv.Set(ctx, key, string(b)); err != nil {
		return r.fail(op, err)
	}
	return nil
}

func (r *StateRepo) fail(op string, err error) error {
	perr := domain.NewPersistenceError(op, err)
	metrics.IncStorageFailure(op)
	r.log.Error().Err(perr).Str("op", op).Msg("storage failure")
	return perr
}
