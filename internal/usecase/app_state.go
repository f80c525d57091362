package usecase

import (
	"context"
	"sync"

	"void-ai-chat/internal/domain"
	"void-ai-chat/internal/domain/model"
	"void-ai-chat/internal/domain/ports/adapter"
	"void-ai-chat/internal/domain/ports/repository"
	"void-ai-chat/internal/infra/worker"

	"github.com/rs/zerolog"
)

const (
	saveKeyChats   = "chats"
	saveKeyProfile = "profile"
)

// Snapshot is a deep copy of the instance state for presentation surfaces.
type Snapshot struct {
	Profile   model.UserProfile   `json:"profile"`
	Sessions  []model.ChatSession `json:"sessions"`
	CurrentID string              `json:"currentSessionId"`
	ModelID   string              `json:"modelId"`
	Architect bool                `json:"architectMode"`
	InFlight  bool                `json:"inFlight"`
}

type StateOptions struct {
	TitleLimit   int
	DefaultModel string
	IDs          model.IDGenerator
	// Saver runs persistence off the caller's path. Nil saves inline.
	Saver *worker.Serial
}

// AppState owns the profile, the ordered session list (newest first), the current
// selection and the model settings. Every mutation publishes a copy after the lock
// is released and schedules a full overwrite of the affected record.
type AppState struct {
	mu        sync.Mutex
	profile   model.UserProfile
	sessions  []*model.ChatSession
	currentID string
	modelID   string
	architect bool

	repo       repository.StateRepository
	pub        adapter.Publisher
	saver      *worker.Serial
	newID      model.IDGenerator
	titleLimit int
	log        *zerolog.Logger
}

func NewAppState(repo repository.StateRepository, pub adapter.Publisher, logger *zerolog.Logger, opts StateOptions) *AppState {
	if pub == nil {
		pub = adapter.NoopPublisher{}
	}
	if opts.IDs == nil {
		opts.IDs = model.NewID
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = "void-4"
	}
	return &AppState{
		repo:       repo,
		pub:        pub,
		saver:      opts.Saver,
		newID:      opts.IDs,
		titleLimit: opts.TitleLimit,
		modelID:    opts.DefaultModel,
		log:        logger,
	}
}

// Load restores sessions and the profile. Storage problems degrade to defaults;
// an empty history starts with one fresh session.
func (s *AppState) Load(ctx context.Context, defaults model.UserProfile) {
	chats := s.repo.LoadChats(ctx)
	profile := s.repo.LoadProfile(ctx, defaults)

	s.mu.Lock()
	s.profile = profile
	s.sessions = make([]*model.ChatSession, 0, len(chats))
	for i := range chats {
		c := chats[i]
		if c.Messages == nil {
			c.Messages = []model.Message{}
		}
		// a streaming flag cannot survive a restart
		for j := range c.Messages {
			c.Messages[j].IsStreaming = false
		}
		s.sessions = append(s.sessions, &c)
	}
	if len(s.sessions) > 0 {
		s.currentID = s.sessions[0].ID
	}
	empty := len(s.sessions) == 0
	s.mu.Unlock()

	s.log.Info().Int("sessions", len(chats)).Int("credits", profile.Credits).Msg("state loaded")
	if empty {
		s.NewSession()
	}
}

// NewSession prepends an empty session and selects it.
func (s *AppState) NewSession() model.ChatSession {
	s.mu.Lock()
	sess := model.NewChatSession(s.newID())
	s.sessions = append([]*model.ChatSession{sess}, s.sessions...)
	s.currentID = sess.ID
	cp := sess.Clone()
	s.mu.Unlock()

	s.pub.Publish(adapter.Event{Kind: adapter.EventSession, SessionID: cp.ID, Session: &cp})
	s.persistChats()
	return cp
}

func (s *AppState) Select(id string) (model.ChatSession, error) {
	s.mu.Lock()
	sess := s.find(id)
	if sess == nil {
		s.mu.Unlock()
		return model.ChatSession{}, domain.ErrNotFound
	}
	s.currentID = id
	cp := sess.Clone()
	s.mu.Unlock()

	s.pub.Publish(adapter.Event{Kind: adapter.EventSession, SessionID: id, Session: &cp})
	return cp, nil
}

// CurrentID returns the selected session id, or "" when there is none.
func (s *AppState) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

func (s *AppState) Session(id string) (model.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.find(id)
	if sess == nil {
		return model.ChatSession{}, domain.ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *AppState) Sessions() []model.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneSessions()
}

func (s *AppState) Profile() model.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Settings returns the selected logical model and the architect toggle.
func (s *AppState) Settings() (modelID string, architect bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelID, s.architect
}

func (s *AppState) SetModel(id string) {
	s.mu.Lock()
	s.modelID = id
	s.mu.Unlock()
	s.pub.Publish(adapter.Event{Kind: adapter.EventState})
}

func (s *AppState) SetArchitect(on bool) {
	s.mu.Lock()
	s.architect = on
	s.mu.Unlock()
	s.pub.Publish(adapter.Event{Kind: adapter.EventState})
}

func (s *AppState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Profile:   s.profile,
		Sessions:  s.cloneSessions(),
		CurrentID: s.currentID,
		ModelID:   s.modelID,
		Architect: s.architect,
	}
}

// AppendMessage adds m to the session, applying the title rule.
func (s *AppState) AppendMessage(sessionID string, m model.Message) error {
	s.mu.Lock()
	sess := s.find(sessionID)
	if sess == nil {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	before := sess.Title
	sess.AddMessage(m.Clone(), s.titleLimit)
	msg := m.Clone()
	var renamed *model.ChatSession
	if sess.Title != before {
		cp := sess.Clone()
		renamed = &cp
	}
	s.mu.Unlock()

	s.pub.Publish(adapter.Event{Kind: adapter.EventMessage, SessionID: sessionID, Message: &msg})
	if renamed != nil {
		s.pub.Publish(adapter.Event{Kind: adapter.EventSession, SessionID: sessionID, Session: renamed})
	}
	s.persistChats()
	return nil
}

// UpdateMessage applies fn to a message that is still streaming and publishes the
// result. A finalized message is immutable and yields ErrMessageFinalized.
func (s *AppState) UpdateMessage(sessionID, msgID string, fn func(m *model.Message)) (model.Message, error) {
	s.mu.Lock()
	sess := s.find(sessionID)
	if sess == nil {
		s.mu.Unlock()
		return model.Message{}, domain.ErrNotFound
	}
	i := sess.FindMessage(msgID)
	if i < 0 {
		s.mu.Unlock()
		return model.Message{}, domain.ErrNotFound
	}
	if !sess.Messages[i].IsStreaming {
		s.mu.Unlock()
		return model.Message{}, domain.ErrMessageFinalized
	}
	fn(&sess.Messages[i])
	sess.UpdatedAt = model.NowMillis()
	msg := sess.Messages[i].Clone()
	s.mu.Unlock()

	out := msg.Clone()
	s.pub.Publish(adapter.Event{Kind: adapter.EventMessage, SessionID: sessionID, Message: &msg})
	s.persistChats()
	return out, nil
}

// Charge deducts cost from the profile, clamping at zero, and returns the amount taken.
func (s *AppState) Charge(cost int) int {
	if cost <= 0 {
		return 0
	}
	s.mu.Lock()
	taken := s.profile.Charge(cost)
	p := s.profile
	s.mu.Unlock()

	s.pub.Publish(adapter.Event{Kind: adapter.EventProfile, Profile: &p})
	s.persistProfile()
	return taken
}

// History returns the turns before message beforeID with non-empty content.
func (s *AppState) History(sessionID, beforeID string) []adapter.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.find(sessionID)
	if sess == nil {
		return nil
	}
	out := make([]adapter.HistoryEntry, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		if m.ID == beforeID {
			break
		}
		if m.Content == "" || m.IsStreaming {
			continue
		}
		out = append(out, adapter.HistoryEntry{Role: m.Role, Text: m.Content})
	}
	return out
}

// Flush blocks until scheduled writes have landed. The saver is closed afterwards.
func (s *AppState) Flush() {
	if s.saver != nil {
		s.saver.Close()
	}
}

func (s *AppState) find(id string) *model.ChatSession {
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

func (s *AppState) cloneSessions() []model.ChatSession {
	out := make([]model.ChatSession, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Clone()
	}
	return out
}

// Scheduled writes read the state when they run, so a coalesced write still
// persists the latest value.
func (s *AppState) persistChats() {
	s.schedule(saveKeyChats, func(ctx context.Context) error {
		return s.repo.SaveChats(ctx, s.Sessions())
	})
}

func (s *AppState) persistProfile() {
	s.schedule(saveKeyProfile, func(ctx context.Context) error {
		return s.repo.SaveProfile(ctx, s.Profile())
	})
}

func (s *AppState) schedule(key string, task worker.Task) {
	if s.saver == nil {
		if err := task(context.Background()); err != nil {
			s.log.Debug().Err(err).Str("key", key).Msg("inline save failed")
		}
		return
	}
	if err := s.saver.Submit(key, task); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("save not scheduled")
	}
}
