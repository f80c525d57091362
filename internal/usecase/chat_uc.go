// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"void-ai-chat/internal/domain"
	"void-ai-chat/internal/domain/model"
	"void-ai-chat/internal/domain/ports/adapter"
	"void-ai-chat/internal/infra/logging"
	"void-ai-chat/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

type ChatUseCase interface {
	NewChat(ctx context.Context) model.ChatSession
	SelectSession(ctx context.Context, id string) (model.ChatSession, error)
	// StartMessage validates and starts a turn, returning once the user message
	// and the placeholder are visible. The turn completes in the background.
	StartMessage(ctx context.Context, text string) (*Turn, error)
	// SendMessage is StartMessage followed by Turn.Wait.
	SendMessage(ctx context.Context, text string) (Outcome, error)
	SetModel(ctx context.Context, id string) error
	SetArchitectMode(ctx context.Context, on bool)
	Snapshot() Snapshot
	ListModels() []model.ModelInfo
	InFlight() bool
}

// HistoryTrimmer keeps the most recent history that fits a token budget.
type HistoryTrimmer interface {
	Trim(history []adapter.HistoryEntry, budget int) []adapter.HistoryEntry
}

type ChatOptions struct {
	HistoryBudget int
	Dev           bool
}

// Turn is one in-flight round trip.
type Turn struct {
	SessionID     string
	UserMessageID string
	MessageID     string
	Intent        adapter.Intent

	done    chan struct{}
	outcome Outcome
}

func (t *Turn) Done() <-chan struct{} { return t.done }

// Wait blocks until the turn reaches a terminal state or ctx ends. Giving up
// waiting does not cancel the turn.
func (t *Turn) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

type chatUC struct {
	state      *AppState
	ai         adapter.AIGateway
	classifier adapter.IntentClassifier
	reducer    *ResponseReducer
	trimmer    HistoryTrimmer
	pub        adapter.Publisher
	newID      model.IDGenerator
	opts       ChatOptions
	log        *zerolog.Logger

	inFlight atomic.Bool
}

func NewChatUseCase(
	state *AppState,
	ai adapter.AIGateway,
	classifier adapter.IntentClassifier,
	trimmer HistoryTrimmer,
	pub adapter.Publisher,
	logger *zerolog.Logger,
	opts ChatOptions,
) *chatUC {
	if pub == nil {
		pub = adapter.NoopPublisher{}
	}
	return &chatUC{
		state:      state,
		ai:         ai,
		classifier: classifier,
		reducer:    NewResponseReducer(ai, state, logger),
		trimmer:    trimmer,
		pub:        pub,
		newID:      state.newID,
		opts:       opts,
		log:        logger,
	}
}

func (c *chatUC) NewChat(ctx context.Context) model.ChatSession {
	s := c.state.NewSession()
	logging.With(ctx, c.log).Debug().Str("session_id", s.ID).Msg("new chat")
	return s
}

// SelectSession only changes which session is shown; a running turn keeps
// writing into the session it started in.
func (c *chatUC) SelectSession(ctx context.Context, id string) (model.ChatSession, error) {
	return c.state.Select(id)
}

func (c *chatUC) SetModel(ctx context.Context, id string) error {
	info, ok := model.LookupModel(id)
	if !ok {
		return domain.ErrUnknownModel
	}
	if info.IsPremium && c.state.Profile().Tier != model.TierPro {
		return domain.ErrPremiumModel
	}
	c.state.SetModel(id)
	return nil
}

func (c *chatUC) SetArchitectMode(ctx context.Context, on bool) {
	c.state.SetArchitect(on)
}

func (c *chatUC) Snapshot() Snapshot {
	s := c.state.Snapshot()
	s.InFlight = c.inFlight.Load()
	return s
}

func (c *chatUC) ListModels() []model.ModelInfo {
	return append([]model.ModelInfo(nil), model.Catalog...)
}

func (c *chatUC) InFlight() bool { return c.inFlight.Load() }

func (c *chatUC) SendMessage(ctx context.Context, text string) (Outcome, error) {
	turn, err := c.StartMessage(ctx, text)
	if err != nil {
		return Outcome{}, err
	}
	return turn.Wait(ctx)
}

func (c *chatUC) StartMessage(ctx context.Context, text string) (*Turn, error) {
	defer logging.TraceDuration(c.log, "ChatUC.StartMessage")()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, domain.ErrTurnInFlight
	}

	modelID, architect := c.state.Settings()
	intent := c.classifier.Classify(text, modelID, architect)
	profile := c.state.Profile()

	if info, ok := model.LookupModel(intent.ModelID); ok && info.IsPremium && profile.Tier != model.TierPro {
		c.inFlight.Store(false)
		metrics.PrecheckBlocked("premium")
		c.pub.Publish(adapter.Event{Kind: adapter.EventNotice, Notice: fmt.Sprintf("%s is available on the pro tier only.", info.Name)})
		return nil, domain.ErrPremiumModel
	}
	if !profile.CanAfford(intent.Cost) {
		c.inFlight.Store(false)
		metrics.PrecheckBlocked("credits")
		c.pub.Publish(adapter.Event{
			Kind:   adapter.EventNotice,
			Notice: fmt.Sprintf("Not enough credits: this request costs %d and you have %d.", intent.Cost, profile.Credits),
		})
		return nil, domain.ErrInsufficientCredits
	}

	sessionID := c.state.CurrentID()
	if sessionID == "" {
		sessionID = c.state.NewSession().ID
	}

	now := model.NowMillis()
	userMsg := model.Message{
		ID:        c.newID(),
		Role:      model.RoleUser,
		Content:   text,
		Timestamp: now,
		Type:      model.MessageText,
	}
	if err := c.state.AppendMessage(sessionID, userMsg); err != nil {
		c.inFlight.Store(false)
		return nil, err
	}
	placeholder := model.Message{
		ID:          c.newID(),
		Role:        model.RoleAssistant,
		Timestamp:   now,
		Type:        intent.Type,
		ModelID:     intent.ModelID,
		IsStreaming: true,
	}
	if err := c.state.AppendMessage(sessionID, placeholder); err != nil {
		c.inFlight.Store(false)
		return nil, err
	}

	history := c.state.History(sessionID, userMsg.ID)
	if c.trimmer != nil {
		history = c.trimmer.Trim(history, c.opts.HistoryBudget)
	}

	turn := &Turn{
		SessionID:     sessionID,
		UserMessageID: userMsg.ID,
		MessageID:     placeholder.ID,
		Intent:        intent,
		done:          make(chan struct{}),
	}
	c.pub.Publish(adapter.Event{Kind: adapter.EventState, InFlight: true})

	runCtx := logging.WithMsgID(logging.WithSessID(context.WithoutCancel(ctx), sessionID), placeholder.ID)
	logging.With(runCtx, c.log).Info().
		Str("type", string(intent.Type)).
		Str("model", intent.Model).
		Bool("architect", intent.Architect).
		Int("cost", intent.Cost).
		Int("history", len(history)).
		Str("prompt", logging.Redact(text, c.opts.Dev)).
		Msg("turn started")

	go c.run(runCtx, turn, history)
	return turn, nil
}

func (c *chatUC) run(ctx context.Context, turn *Turn, history []adapter.HistoryEntry) {
	defer close(turn.done)
	defer c.release()

	ref := MessageRef{SessionID: turn.SessionID, MessageID: turn.MessageID}
	log := logging.With(ctx, c.log)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("turn panicked")
			turn.outcome = Outcome{State: StateErrored, Content: domain.GenericMessage, Err: fmt.Errorf("panic: %v", r)}
			c.reducer.finalize(ref, domain.GenericMessage, nil, *log)
			metrics.IncTurn(string(turn.Intent.Type), "errored")
		}
	}()

	var out Outcome
	if turn.Intent.Type == model.MessageImage {
		out = c.generateImage(ctx, ref, turn.Intent.Prompt)
	} else {
		out = c.reducer.Reduce(ctx, ref, turn.Intent.Request(history))
	}

	// only a successful turn is charged
	if out.Succeeded() && turn.Intent.Cost > 0 {
		taken := c.state.Charge(turn.Intent.Cost)
		metrics.AddCreditsSpent(taken)
	}
	metrics.IncTurn(string(turn.Intent.Type), outcomeLabel(out))

	ev := log.Info()
	if out.Err != nil {
		ev = log.Warn().Err(out.Err)
	}
	ev.Str("state", out.State.String()).Bool("fallback", out.Fallback).Int("fragments", out.Fragments).Msg("turn finished")
	turn.outcome = out
}

func (c *chatUC) release() {
	c.inFlight.Store(false)
	c.pub.Publish(adapter.Event{Kind: adapter.EventState, InFlight: false})
}

func (c *chatUC) generateImage(ctx context.Context, ref MessageRef, prompt string) Outcome {
	uri, err := c.ai.GenerateImage(ctx, prompt)
	if err != nil {
		content := domain.UserFacingText(err)
		c.reducer.finalize(ref, content, nil, *logging.With(ctx, c.log))
		return Outcome{State: StateErrored, Content: content, Err: err}
	}

	content := "Here is your image of: " + prompt
	_, uerr := c.state.UpdateMessage(ref.SessionID, ref.MessageID, func(m *model.Message) {
		m.Content = content
		m.ImageURL = uri
		m.IsStreaming = false
	})
	if uerr != nil {
		logging.With(ctx, c.log).Warn().Err(uerr).Msg("image result not applied")
	}
	return Outcome{State: StateFinalized, Content: content}
}

func outcomeLabel(o Outcome) string {
	switch {
	case o.State == StateErrored:
		return "errored"
	case o.Fallback:
		return "fallback"
	default:
		return "finalized"
	}
}
