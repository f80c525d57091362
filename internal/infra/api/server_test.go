//go:build !integration

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"void-ai-chat/internal/config"
	"void-ai-chat/internal/domain/model"
	"void-ai-chat/internal/domain/ports/adapter"
	"void-ai-chat/internal/infra/adapters/ai"
	"void-ai-chat/internal/infra/tokens"
	"void-ai-chat/internal/usecase"
)

//
// -------------------- in-memory infra fakes --------------------
//

type memRepo struct {
	mu      sync.Mutex
	chats   []model.ChatSession
	profile *model.UserProfile
}

func (m *memRepo) LoadChats(ctx context.Context) []model.ChatSession { return nil }

func (m *memRepo) SaveChats(ctx context.Context, chats []model.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats = chats
	return nil
}

func (m *memRepo) LoadProfile(ctx context.Context, defaults model.UserProfile) model.UserProfile {
	return defaults
}

func (m *memRepo) SaveProfile(ctx context.Context, p model.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = &p
	return nil
}

// scriptedAI streams fixed fragments. When gate is non-nil every stream waits on it.
type scriptedAI struct {
	frags []string
	gate  chan struct{}
}

func (s *scriptedAI) Generate(ctx context.Context, req adapter.GenerateRequest) (adapter.GenerateResult, error) {
	return adapter.GenerateResult{Text: strings.Join(s.frags, "")}, nil
}

func (s *scriptedAI) GenerateStream(ctx context.Context, req adapter.GenerateRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if s.gate != nil {
			<-s.gate
		}
		for _, f := range s.frags {
			if !yield(f, nil) {
				return
			}
		}
	}
}

func (s *scriptedAI) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return "data:image/png;base64,AAAA", nil
}

//
// -------------------- test helpers --------------------
//

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

type harness struct {
	uc     usecase.ChatUseCase
	router http.Handler
	hub    *Hub
}

func newHarness(gw adapter.AIGateway, profile model.UserProfile) *harness {
	log := newLogger()
	hub := NewHub(nil, log)
	state := usecase.NewAppState(&memRepo{}, hub, log, usecase.StateOptions{TitleLimit: 40, DefaultModel: "void-4"})
	state.Load(context.Background(), profile)

	aiCfg := config.AIConfig{
		DefaultModel: "void-4",
		ImageModel:   "img",
		ModelMap:     map[string]string{"void-4": "flash", "gemini-pro": "flash", "gpt-4": "gpt-4o", "claude-3-5": "flash"},
		Temperature:  0.7,
	}
	classifier := ai.NewKeywordClassifier(aiCfg, config.CreditsConfig{ImageGeneration: 1})
	uc := usecase.NewChatUseCase(state, gw, classifier, tokens.NewEstimator(), hub, log, usecase.ChatOptions{HistoryBudget: 1000})

	srv := NewServer(config.HTTPConfig{Port: 0, RequestTimeout: 5 * time.Second}, uc, hub, log)
	return &harness{uc: uc, router: srv.Router(), hub: hub}
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	var rd *bytes.Buffer
	if body != "" {
		rd = bytes.NewBufferString(body)
	} else {
		rd = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func waitIdle(t *testing.T, uc usecase.ChatUseCase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for uc.InFlight() {
		if time.Now().After(deadline) {
			t.Fatal("turn did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

//
// -------------------- tests --------------------
//

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(&scriptedAI{frags: []string{"ok"}}, model.NewUserProfile("User", 5, model.TierPro))

	if rec := h.do(http.MethodGet, "/health", ""); rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health: %d %q", rec.Code, rec.Body.String())
	}
	rec := h.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("trace id header missing")
	}
}

func TestCatalogEndpoints(t *testing.T) {
	h := newHarness(&scriptedAI{}, model.NewUserProfile("User", 5, model.TierPro))

	t.Run("models list returns the catalog", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/api/v1/models", "")
		var body itemsBody[model.ModelInfo]
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if rec.Code != http.StatusOK || len(body.Items) != len(model.Catalog) {
			t.Fatalf("want %d models, got %d (status %d)", len(model.Catalog), len(body.Items), rec.Code)
		}
	})

	t.Run("quick actions are listed", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/api/v1/quick-actions", "")
		var body itemsBody[model.QuickAction]
		_ = json.NewDecoder(rec.Body).Decode(&body)
		if len(body.Items) != len(model.QuickActions) {
			t.Fatalf("want %d actions, got %d", len(model.QuickActions), len(body.Items))
		}
	})
}

func TestSessionEndpoints(t *testing.T) {
	h := newHarness(&scriptedAI{}, model.NewUserProfile("User", 5, model.TierPro))

	rec := h.do(http.MethodPost, "/api/v1/sessions", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d", rec.Code)
	}
	var created model.ChatSession
	_ = json.NewDecoder(rec.Body).Decode(&created)
	if created.Title != model.DefaultTitle {
		t.Fatalf("unexpected title %q", created.Title)
	}

	t.Run("get 200", func(t *testing.T) {
		if rec := h.do(http.MethodGet, "/api/v1/sessions/"+created.ID, ""); rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
	})

	t.Run("get 404", func(t *testing.T) {
		if rec := h.do(http.MethodGet, "/api/v1/sessions/nope", ""); rec.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", rec.Code)
		}
	})

	t.Run("select unknown 404", func(t *testing.T) {
		if rec := h.do(http.MethodPut, "/api/v1/sessions/current", `{"id":"nope"}`); rec.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", rec.Code)
		}
	})

	t.Run("select invalid json 400", func(t *testing.T) {
		if rec := h.do(http.MethodPut, "/api/v1/sessions/current", `{`); rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	t.Run("state shows newest first", func(t *testing.T) {
		var snap usecase.Snapshot
		_ = json.NewDecoder(h.do(http.MethodGet, "/api/v1/state", "").Body).Decode(&snap)
		if len(snap.Sessions) != 2 || snap.Sessions[0].ID != created.ID || snap.CurrentID != created.ID {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}
	})
}

func TestPostMessage(t *testing.T) {
	t.Run("wait returns the finalized content", func(t *testing.T) {
		h := newHarness(&scriptedAI{frags: []string{"Hel", "lo!"}}, model.NewUserProfile("User", 5, model.TierPro))
		rec := h.do(http.MethodPost, "/api/v1/messages", `{"text":"Hi","wait":true}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d body=%s", rec.Code, rec.Body.String())
		}
		var body turnResponse
		_ = json.NewDecoder(rec.Body).Decode(&body)
		if body.State != "finalized" || body.Content != "Hello!" {
			t.Fatalf("unexpected turn: %+v", body)
		}
	})

	t.Run("fire and forget returns 202", func(t *testing.T) {
		h := newHarness(&scriptedAI{frags: []string{"x"}}, model.NewUserProfile("User", 5, model.TierPro))
		rec := h.do(http.MethodPost, "/api/v1/messages", `{"text":"Hi"}`)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("want 202, got %d", rec.Code)
		}
		waitIdle(t, h.uc)
	})

	t.Run("blank text 400", func(t *testing.T) {
		h := newHarness(&scriptedAI{}, model.NewUserProfile("User", 5, model.TierPro))
		if rec := h.do(http.MethodPost, "/api/v1/messages", `{"text":"   "}`); rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	t.Run("image with no credits 402", func(t *testing.T) {
		h := newHarness(&scriptedAI{}, model.NewUserProfile("User", 0, model.TierPro))
		if rec := h.do(http.MethodPost, "/api/v1/messages", `{"text":"/image a cat"}`); rec.Code != http.StatusPaymentRequired {
			t.Fatalf("want 402, got %d", rec.Code)
		}
	})

	t.Run("second turn while streaming 409", func(t *testing.T) {
		gate := make(chan struct{})
		h := newHarness(&scriptedAI{frags: []string{"x"}, gate: gate}, model.NewUserProfile("User", 5, model.TierPro))
		if rec := h.do(http.MethodPost, "/api/v1/messages", `{"text":"one"}`); rec.Code != http.StatusAccepted {
			t.Fatalf("want 202, got %d", rec.Code)
		}
		if rec := h.do(http.MethodPost, "/api/v1/messages", `{"text":"two"}`); rec.Code != http.StatusConflict {
			t.Fatalf("want 409, got %d", rec.Code)
		}
		close(gate)
		waitIdle(t, h.uc)
	})
}

func TestPutSettings(t *testing.T) {
	t.Run("premium model on free tier 403", func(t *testing.T) {
		h := newHarness(&scriptedAI{}, model.NewUserProfile("User", 5, model.TierFree))
		if rec := h.do(http.MethodPut, "/api/v1/settings", `{"modelId":"gpt-4"}`); rec.Code != http.StatusForbidden {
			t.Fatalf("want 403, got %d", rec.Code)
		}
	})

	t.Run("unknown model 400", func(t *testing.T) {
		h := newHarness(&scriptedAI{}, model.NewUserProfile("User", 5, model.TierPro))
		if rec := h.do(http.MethodPut, "/api/v1/settings", `{"modelId":"nope"}`); rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	t.Run("architect toggle is reflected in state", func(t *testing.T) {
		h := newHarness(&scriptedAI{}, model.NewUserProfile("User", 5, model.TierPro))
		rec := h.do(http.MethodPut, "/api/v1/settings", `{"modelId":"gpt-4","architectMode":true}`)
		var snap usecase.Snapshot
		_ = json.NewDecoder(rec.Body).Decode(&snap)
		if rec.Code != http.StatusOK || snap.ModelID != "gpt-4" || !snap.Architect {
			t.Fatalf("unexpected: %d %+v", rec.Code, snap)
		}
	})
}

func TestWebsocketFeed(t *testing.T) {
	h := newHarness(&scriptedAI{frags: []string{"Hel", "lo!"}}, model.NewUserProfile("User", 5, model.TierPro))
	ts := httptest.NewServer(h.router)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var first map[string]json.RawMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if string(first["kind"]) != `"snapshot"` {
		t.Fatalf("first frame must be the snapshot, got %s", first["kind"])
	}

	if err := conn.WriteJSON(wsIncoming{Text: "Hi"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for {
		var ev adapter.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("no final message event: %v", err)
		}
		if ev.Kind == adapter.EventMessage && ev.Message != nil &&
			ev.Message.Role == model.RoleAssistant && !ev.Message.IsStreaming {
			if ev.Message.Content != "Hello!" {
				t.Fatalf("unexpected final content %q", ev.Message.Content)
			}
			break
		}
	}
	waitIdle(t, h.uc)
}
