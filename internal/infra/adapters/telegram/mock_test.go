//go:build !integration

package telegram

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"void-ai-chat/internal/domain/model"
	"void-ai-chat/internal/domain/ports/adapter"
	"void-ai-chat/internal/usecase"
)

type sentMsg struct {
	ChatID int64
	ID     int
	Text   string
	Edit   bool
	Photo  bool
}

type mockMessenger struct {
	mu     sync.Mutex
	nextID int
	log    []sentMsg

	// EditHook runs before an edit is recorded; a non-nil error fails the edit.
	EditHook func(messageID int, text string) error
}

var _ adapter.Messenger = (*mockMessenger)(nil)

func (m *mockMessenger) SendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.log = append(m.log, sentMsg{ChatID: chatID, ID: m.nextID, Text: text})
	return m.nextID, nil
}

func (m *mockMessenger) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	if m.EditHook != nil {
		if err := m.EditHook(messageID, text); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, sentMsg{ChatID: chatID, ID: messageID, Text: text, Edit: true})
	return nil
}

func (m *mockMessenger) SendPhoto(ctx context.Context, chatID int64, dataURI, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, sentMsg{ChatID: chatID, Text: caption, Photo: true})
	return nil
}

func (m *mockMessenger) sent() []sentMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMsg(nil), m.log...)
}

// waitFor polls until cond holds on the messenger log.
func (m *mockMessenger) waitFor(cond func([]sentMsg) bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond(m.sent()) {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

type mockChatUC struct {
	StartMessageFunc func(ctx context.Context, text string) (*usecase.Turn, error)
	SetModelFunc     func(ctx context.Context, id string) error
	SetArchitectFunc func(ctx context.Context, on bool)
	NewChatFunc      func(ctx context.Context) model.ChatSession
	snapshot         usecase.Snapshot
}

var _ usecase.ChatUseCase = (*mockChatUC)(nil)

func (m *mockChatUC) NewChat(ctx context.Context) model.ChatSession {
	if m.NewChatFunc != nil {
		return m.NewChatFunc(ctx)
	}
	return model.ChatSession{}
}

func (m *mockChatUC) SelectSession(ctx context.Context, id string) (model.ChatSession, error) {
	return model.ChatSession{}, nil
}

func (m *mockChatUC) StartMessage(ctx context.Context, text string) (*usecase.Turn, error) {
	if m.StartMessageFunc != nil {
		return m.StartMessageFunc(ctx, text)
	}
	return &usecase.Turn{}, nil
}

func (m *mockChatUC) SendMessage(ctx context.Context, text string) (usecase.Outcome, error) {
	return usecase.Outcome{}, nil
}

func (m *mockChatUC) SetModel(ctx context.Context, id string) error {
	if m.SetModelFunc != nil {
		return m.SetModelFunc(ctx, id)
	}
	return nil
}

func (m *mockChatUC) SetArchitectMode(ctx context.Context, on bool) {
	if m.SetArchitectFunc != nil {
		m.SetArchitectFunc(ctx, on)
	}
}

func (m *mockChatUC) Snapshot() usecase.Snapshot    { return m.snapshot }
func (m *mockChatUC) ListModels() []model.ModelInfo { return model.Catalog }
func (m *mockChatUC) InFlight() bool                { return false }

type mockLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return m.AllowFunc(ctx, key, limit, window)
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: chatID},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}
	if len(text) > 0 && text[0] == '/' {
		cmdLen := len(text)
		for i, r := range text {
			if r == ' ' {
				cmdLen = i
				break
			}
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	}
	return tgbotapi.Update{Message: msg}
}
