// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"io"
	"iter"
	"sync"

	"void-ai-chat/internal/domain/model"
	"void-ai-chat/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

// --- Fake AI gateway

type fakeAI struct {
	streamFn   func(ctx context.Context, req adapter.GenerateRequest) iter.Seq2[string, error]
	generateFn func(ctx context.Context, req adapter.GenerateRequest) (adapter.GenerateResult, error)
	imageFn    func(ctx context.Context, prompt string) (string, error)

	mu            sync.Mutex
	streamReqs    []adapter.GenerateRequest
	generateCalls int
}

func (f *fakeAI) Generate(ctx context.Context, req adapter.GenerateRequest) (adapter.GenerateResult, error) {
	f.mu.Lock()
	f.generateCalls++
	f.mu.Unlock()
	if f.generateFn == nil {
		return adapter.GenerateResult{Text: "generated"}, nil
	}
	return f.generateFn(ctx, req)
}

func (f *fakeAI) GenerateStream(ctx context.Context, req adapter.GenerateRequest) iter.Seq2[string, error] {
	f.mu.Lock()
	f.streamReqs = append(f.streamReqs, req)
	f.mu.Unlock()
	if f.streamFn == nil {
		return streamOf(nil, nil)
	}
	return f.streamFn(ctx, req)
}

func (f *fakeAI) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if f.imageFn == nil {
		return "data:image/png;base64,AAAA", nil
	}
	return f.imageFn(ctx, prompt)
}

func (f *fakeAI) generates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generateCalls
}

func (f *fakeAI) lastStreamReq() adapter.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streamReqs) == 0 {
		return adapter.GenerateRequest{}
	}
	return f.streamReqs[len(f.streamReqs)-1]
}

// streamOf yields frags in order, then err if non-nil.
func streamOf(frags []string, err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range frags {
			if !yield(f, nil) {
				return
			}
		}
		if err != nil {
			yield("", err)
		}
	}
}

// --- Fake classifier

type fakeClassifier struct {
	classifyFn func(message, modelID string, force bool) adapter.Intent
}

func (f *fakeClassifier) Classify(message, modelID string, force bool) adapter.Intent {
	if f.classifyFn != nil {
		return f.classifyFn(message, modelID, force)
	}
	return textIntent(message, modelID, 0)
}

func textIntent(message, modelID string, cost int) adapter.Intent {
	return adapter.Intent{
		Type:        model.MessageText,
		ModelID:     modelID,
		Model:       "test-model",
		Cost:        cost,
		Temperature: 0.7,
		Prompt:      message,
	}
}

// --- In-memory state repository

type memStateRepo struct {
	mu           sync.Mutex
	chats        []model.ChatSession
	profile      *model.UserProfile
	chatSaves    int
	profileSaves int
	saveErr      error
}

func (m *memStateRepo) LoadChats(ctx context.Context) []model.ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ChatSession, len(m.chats))
	for i := range m.chats {
		out[i] = m.chats[i].Clone()
	}
	return out
}

func (m *memStateRepo) SaveChats(ctx context.Context, chats []model.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.chatSaves++
	m.chats = chats
	return nil
}

func (m *memStateRepo) LoadProfile(ctx context.Context, defaults model.UserProfile) model.UserProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profile == nil {
		return defaults
	}
	return *m.profile
}

func (m *memStateRepo) SaveProfile(ctx context.Context, p model.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.profileSaves++
	m.profile = &p
	return nil
}

func (m *memStateRepo) savedProfile() (model.UserProfile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profile == nil {
		return model.UserProfile{}, false
	}
	return *m.profile, true
}

// --- Recording publisher

type recordingPublisher struct {
	mu     sync.Mutex
	events []adapter.Event
}

func (p *recordingPublisher) Publish(ev adapter.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

// contents returns every published content of message id, in order.
func (p *recordingPublisher) contents(id string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		if ev.Kind == adapter.EventMessage && ev.Message != nil && ev.Message.ID == id {
			out = append(out, ev.Message.Content)
		}
	}
	return out
}

func (p *recordingPublisher) notices() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		if ev.Kind == adapter.EventNotice {
			out = append(out, ev.Notice)
		}
	}
	return out
}

// --- Helpers

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestState(repo *memStateRepo, pub adapter.Publisher, profile model.UserProfile) *AppState {
	s := NewAppState(repo, pub, newTestLogger(), StateOptions{TitleLimit: 40, DefaultModel: "void-4"})
	s.Load(context.Background(), profile)
	return s
}

type harness struct {
	ai    *fakeAI
	cls   *fakeClassifier
	repo  *memStateRepo
	pub   *recordingPublisher
	state *AppState
	uc    *chatUC
}

func newHarness(profile model.UserProfile) *harness {
	h := &harness{
		ai:   &fakeAI{},
		cls:  &fakeClassifier{},
		repo: &memStateRepo{},
		pub:  &recordingPublisher{},
	}
	h.state = newTestState(h.repo, h.pub, profile)
	h.uc = NewChatUseCase(h.state, h.ai, h.cls, nil, h.pub, newTestLogger(), ChatOptions{HistoryBudget: 1000})
	return h
}

// message returns the message with id from the session, failing loudly via ok=false.
func (h *harness) message(sessionID, id string) (model.Message, bool) {
	s, err := h.state.Session(sessionID)
	if err != nil {
		return model.Message{}, false
	}
	i := s.FindMessage(id)
	if i < 0 {
		return model.Message{}, false
	}
	return s.Messages[i], true
}
