package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/xiaoyue/companion/internal/model/profile"
	"github.com/xiaoyue/companion/internal/service/companion"
	"github.com/xiaoyue/companion/internal/store"
)

type nopBackend struct{}

func (nopBackend) Load() (*store.Document, error) { return nil, errors.New("empty") }
func (nopBackend) Save(*store.Document) error     { return nil }

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	profileStore := store.NewService(nopBackend{}, store.Config{}, zerolog.Nop(), nil)
	svc := companion.NewService(profileStore, nil, nil, companion.Config{}, zerolog.Nop(), nil)

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleChatReturnsReply(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/chat", `{"userId":"u1","message":"在吗","progress":0.2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result companion.TurnResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Reply == "" {
		t.Fatal("expected a non-empty reply")
	}
	if !result.Fallback {
		t.Fatal("expected fallback without a configured generator")
	}
}

func TestHandleChatValidation(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"缺少userId", `{"message":"hi"}`},
		{"缺少message", `{"userId":"u1"}`},
		{"非法JSON", `{"userId":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/chat", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	router := newTestRouter(t)

	if rec := doJSON(t, router, http.MethodPost, "/chat", `{"userId":"u1","message":"你好"}`); rec.Code != http.StatusOK {
		t.Fatalf("chat failed: %d", rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/history/u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		UserID   string            `json:"userId"`
		Messages []profile.Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(payload.Messages))
	}
	if payload.Messages[0].Role != profile.RoleUser {
		t.Fatalf("expected user message first, got %s", payload.Messages[0].Role)
	}
}

func TestHistoryLimitValidation(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/history/u1?limit=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestClearHistory(t *testing.T) {
	router := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/chat", `{"userId":"u1","message":"你好"}`)

	if rec := doJSON(t, router, http.MethodDelete, "/history/u1", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/history/u1", "")
	var payload struct {
		Messages []profile.Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Messages) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(payload.Messages))
	}
}

func TestUpdatePreferences(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPut, "/preferences/u1", `{"communicationStyle":"formal"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPut, "/preferences/u1", `{"communicationStyle":"shouty"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown style, got %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	router := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/chat", `{"userId":"u1","message":"你好"}`)
	doJSON(t, router, http.MethodPost, "/chat", `{"userId":"u2","message":"在吗"}`)

	rec := doJSON(t, router, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats store.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.TotalUsers != 2 {
		t.Fatalf("expected 2 users, got %d", stats.TotalUsers)
	}
	if stats.TotalMessages != 4 {
		t.Fatalf("expected 4 messages, got %d", stats.TotalMessages)
	}
}
