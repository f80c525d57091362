package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"void-ai-chat/internal/domain"
	"void-ai-chat/internal/domain/model"
	"void-ai-chat/internal/infra/logging"
	"void-ai-chat/internal/usecase"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type itemsBody[T any] struct {
	Items []T `json:"items"`
}

type selectRequest struct {
	ID string `json:"id"`
}

type messageRequest struct {
	Text string `json:"text"`
	// Wait holds the response until the turn is terminal.
	Wait bool `json:"wait,omitempty"`
}

type turnResponse struct {
	SessionID     string            `json:"sessionId"`
	UserMessageID string            `json:"userMessageId"`
	MessageID     string            `json:"messageId"`
	Type          model.MessageType `json:"type"`
	State         string            `json:"state"`
	Content       string            `json:"content,omitempty"`
	Fallback      bool              `json:"fallback,omitempty"`
}

type settingsRequest struct {
	ModelID       *string `json:"modelId,omitempty"`
	ArchitectMode *bool   `json:"architectMode,omitempty"`
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.uc.Snapshot())
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, itemsBody[model.ModelInfo]{Items: s.uc.ListModels()})
}

func (s *Server) listQuickActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, itemsBody[model.QuickAction]{Items: model.QuickActions})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, s.uc.NewChat(r.Context()))
}

func (s *Server) selectSession(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := s.uc.SelectSession(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, sess := range s.uc.Snapshot().Sessions {
		if sess.ID == id {
			writeJSON(w, http.StatusOK, sess)
			return
		}
	}
	s.writeError(w, r, domain.ErrNotFound)
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decode(w, r, &req) {
		return
	}
	turn, err := s.uc.StartMessage(r.Context(), req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := turnResponse{
		SessionID:     turn.SessionID,
		UserMessageID: turn.UserMessageID,
		MessageID:     turn.MessageID,
		Type:          turn.Intent.Type,
		State:         usecase.StateStreaming.String(),
	}
	if !req.Wait {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}
	out, err := turn.Wait(r.Context())
	if err != nil {
		// the turn keeps running; the client follows it on /ws
		writeJSON(w, http.StatusAccepted, resp)
		return
	}
	resp.State = out.State.String()
	resp.Content = out.Content
	resp.Fallback = out.Fallback
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ModelID != nil {
		if err := s.uc.SetModel(r.Context(), *req.ModelID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if req.ArchitectMode != nil {
		s.uc.SetArchitectMode(r.Context(), *req.ArchitectMode)
	}
	writeJSON(w, http.StatusOK, s.uc.Snapshot())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing body"})
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return false
	}
	return true
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage), errors.Is(err, domain.ErrUnknownModel),
		errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrPremiumModel):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTurnInFlight):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, code, errorBody{Error: err.Error(), Kind: string(domain.KindOf(err))})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
