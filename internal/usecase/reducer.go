package usecase

import (
	"context"
	"errors"
	"strings"

	"void-ai-chat/internal/domain"
	"void-ai-chat/internal/domain/model"
	"void-ai-chat/internal/domain/ports/adapter"
	"void-ai-chat/internal/infra/metrics"

	"github.com/rs/zerolog"
)

type OutcomeState int

const (
	StatePending OutcomeState = iota
	StateStreaming
	StateFinalized
	StateFailed
	StateErrored
)

func (s OutcomeState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStreaming:
		return "streaming"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// Outcome is the terminal result of one reduction. State is Finalized or Errored.
type Outcome struct {
	State     OutcomeState
	Content   string
	Sources   []model.GroundingSource
	Err       error
	Fallback  bool
	Fragments int
}

func (o Outcome) Succeeded() bool { return o.State == StateFinalized }

// MessageRef addresses the placeholder a reduction writes into.
type MessageRef struct {
	SessionID string
	MessageID string
}

// ResponseReducer folds a fragment stream into one placeholder message. A stream
// failure discards the partial content and retries once without streaming.
type ResponseReducer struct {
	ai    adapter.AIGateway
	state *AppState
	log   *zerolog.Logger
}

func NewResponseReducer(ai adapter.AIGateway, state *AppState, logger *zerolog.Logger) *ResponseReducer {
	return &ResponseReducer{ai: ai, state: state, log: logger}
}

func (r *ResponseReducer) Reduce(ctx context.Context, ref MessageRef, req adapter.GenerateRequest) Outcome {
	out := Outcome{State: StatePending}
	log := r.log.With().Str("session_id", ref.SessionID).Str("message_id", ref.MessageID).Str("model", req.Model).Logger()

	var acc strings.Builder
	var streamErr error
	for frag, err := range r.ai.GenerateStream(ctx, req) {
		if err != nil {
			streamErr = err
			break
		}
		if frag == "" {
			continue
		}
		acc.WriteString(frag)
		out.State = StateStreaming
		out.Fragments++

		content := acc.String()
		if _, err := r.state.UpdateMessage(ref.SessionID, ref.MessageID, func(m *model.Message) {
			m.Content = content
		}); err != nil {
			log.Warn().Err(err).Msg("fragment not applied")
		}
	}
	metrics.AddStreamFragments(req.Model, out.Fragments)

	if streamErr == nil {
		out.State = StateFinalized
		out.Content = acc.String()
		r.finalize(ref, out.Content, nil, log)
		return out
	}

	out.State = StateFailed
	out.Fallback = true
	log.Warn().Err(streamErr).Int("fragments", out.Fragments).Msg("stream failed, retrying without streaming")

	res, err := r.ai.Generate(ctx, req)
	if err == nil {
		metrics.IncStreamFallback(req.Model, true)
		out.State = StateFinalized
		out.Content = res.Text
		out.Sources = res.Sources
		r.finalize(ref, out.Content, out.Sources, log)
		return out
	}

	metrics.IncStreamFallback(req.Model, false)
	log.Error().Err(err).Msg("fallback generate failed")
	out.State = StateErrored
	out.Err = errors.Join(streamErr, err)
	// the quota signal of either attempt decides the wording
	text := domain.UserFacingText(err)
	if domain.IsKind(streamErr, domain.KindQuota) {
		text = domain.UserFacingText(streamErr)
	}
	out.Content = text
	r.finalize(ref, out.Content, nil, log)
	return out
}

func (r *ResponseReducer) finalize(ref MessageRef, content string, sources []model.GroundingSource, log zerolog.Logger) {
	_, err := r.state.UpdateMessage(ref.SessionID, ref.MessageID, func(m *model.Message) {
		m.Content = content
		m.Sources = sources
		m.IsStreaming = false
	})
	if err != nil {
		log.Warn().Err(err).Msg("finalize not applied")
	}
}
