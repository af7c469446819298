package scoreboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fentz26/reflex/internal/audit"
	"github.com/fentz26/reflex/internal/models"
	"github.com/fentz26/reflex/internal/reporter"
	"github.com/fentz26/reflex/internal/store"
	"github.com/fentz26/reflex/internal/trial"
)

func TestHealthEndpoint_OK(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if !health.OK {
		t.Error("Expected health.OK to be true")
	}
	if health.DB != "ok" {
		t.Errorf("Expected DB status 'ok', got '%s'", health.DB)
	}
	if health.Version == "" {
		t.Error("Expected version to be set")
	}
	if health.Time == "" {
		t.Error("Expected time to be set")
	}
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	if w.Result().StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Result().StatusCode)
	}
}

func TestHealthEndpoint_DBError(t *testing.T) {
	s, st, cleanup := newTestServer(t)
	defer cleanup()

	// Close the store to simulate DB error
	st.Close()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if health.OK {
		t.Error("Expected health.OK to be false when DB is down")
	}
	if health.DB == "ok" {
		t.Error("Expected DB status to indicate error")
	}
}

func TestRegisterEndpoint(t *testing.T) {
	s, st, cleanup := newTestServer(t)
	defer cleanup()
	h := s.Handler()

	resp := postJSON(t, h, "/register", map[string]string{"username": "ada"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.Code)
	}

	resp = postJSON(t, h, "/register", map[string]string{"username": "ada"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("Expected status 409, got %d", resp.Code)
	}
	if msg := decodeMessage(t, resp); msg != "Username already exists" {
		t.Errorf("Expected conflict message, got %q", msg)
	}

	resp = postJSON(t, h, "/register", map[string]string{"username": "  "})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for empty username, got %d", resp.Code)
	}

	entries, err := st.ListAudit("ada")
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected 2 audit entries for ada, got %d", len(entries))
	}
}

func TestLoginEndpoint(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()
	h := s.Handler()

	resp := postJSON(t, h, "/login", map[string]string{"username": "ghost"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", resp.Code)
	}

	postJSON(t, h, "/register", map[string]string{"username": "ada"})
	resp = postJSON(t, h, "/login", map[string]string{"username": "ada"})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if v, ok := body["reactionTime"]; !ok || v != nil {
		t.Errorf("Expected reactionTime null for new user, got %v", v)
	}
}

func TestUpdateEndpoint(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()
	h := s.Handler()

	resp := postJSON(t, h, "/update", map[string]any{"username": "ghost", "reactionTime": 250})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", resp.Code)
	}

	postJSON(t, h, "/register", map[string]string{"username": "ada"})

	resp = postJSON(t, h, "/update", map[string]any{"username": "ada", "reactionTime": -1})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400 for negative time, got %d", resp.Code)
	}

	tests := []struct {
		sent     float64
		best     float64
		improved bool
	}{
		{300, 300, true},
		{320.5, 300, false},
		{275, 275, true},
	}
	for _, tt := range tests {
		resp = postJSON(t, h, "/update", map[string]any{"username": "ada", "reactionTime": tt.sent})
		if resp.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.Code)
		}
		var body updateResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if body.ReactionTime == nil || *body.ReactionTime != tt.best {
			t.Errorf("sent %v: expected best %v, got %v", tt.sent, tt.best, body.ReactionTime)
		}
		if body.Improved != tt.improved {
			t.Errorf("sent %v: expected improved=%t", tt.sent, tt.improved)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()

	for _, path := range []string{"/register", "/login", "/update"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected status 405, got %d", path, w.Code)
		}
	}
}

func TestInvalidJSON(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestOversizedBody(t *testing.T) {
	s, st, cleanup := newTestServer(t)
	defer cleanup()

	body := `{"username":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	for _, path := range []string{"/register", "/login", "/update"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("%s: expected status 413, got %d", path, w.Code)
		}
	}

	entries, err := st.ListAudit("")
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no audit entries, got %d", len(entries))
	}
}

func TestAuditEndpoint(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()
	h := s.Handler()

	getAudit := func(query string) []models.AuditEntry {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/audit"+query, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var entries []models.AuditEntry
		if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
			t.Fatalf("Failed to decode entries: %v", err)
		}
		return entries
	}

	if entries := getAudit(""); entries == nil || len(entries) != 0 {
		t.Errorf("Expected empty list, got %v", entries)
	}

	postJSON(t, h, "/register", map[string]string{"username": "ada"})
	postJSON(t, h, "/register", map[string]string{"username": "bob"})
	postJSON(t, h, "/update", map[string]any{"username": "ada", "reactionTime": 250.5})

	entries := getAudit("?username=ada")
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries for ada, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Username != "ada" {
			t.Errorf("Expected only ada's entries, got %q", e.Username)
		}
	}

	if all := getAudit(""); len(all) != 3 {
		t.Errorf("Expected 3 entries, got %d", len(all))
	}

	req := httptest.NewRequest(http.MethodPost, "/audit", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	s := NewServer(NewService(st, audit.NewWriter(st), zerolog.Nop()), "127.0.0.1:0", []string{"http://localhost:5173"}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodOptions, "/update", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Expected allowed origin header, got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/update", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no allowed origin for unknown origin, got %q", got)
	}
}

// TestReporterRoundTrip drives the real client and reporter against the API.
func TestReporterRoundTrip(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx := context.Background()
	client := reporter.NewClient(srv.URL, time.Second)

	if _, err := client.Login(ctx, "ghost"); err != reporter.ErrUserNotFound {
		t.Fatalf("Expected ErrUserNotFound, got %v", err)
	}

	if err := client.Register(ctx, "ada"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := client.Register(ctx, "ada"); !reporter.IsConflict(err) {
		t.Fatalf("Expected conflict, got %v", err)
	}

	id, err := client.Login(ctx, "ada")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if id.BestTime != nil {
		t.Fatalf("Expected no best time, got %v", *id.BestTime)
	}

	rep := reporter.New(client, zerolog.Nop())
	result := trial.SessionResult{
		Times:   [3]time.Duration{250 * time.Millisecond, 300 * time.Millisecond, 275 * time.Millisecond},
		Average: 275 * time.Millisecond,
	}
	out := rep.Submit(ctx, result, id)
	if out.Kind != reporter.SubmitNewBest || out.Best != 275*time.Millisecond {
		t.Fatalf("Expected new best 275ms, got %+v", out)
	}

	id, err = client.Login(ctx, "ada")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if id.BestTime == nil || *id.BestTime != 275*time.Millisecond {
		t.Fatalf("Expected stored best 275ms, got %v", id.BestTime)
	}

	if err := client.Health(ctx); err != nil {
		t.Errorf("Health failed: %v", err)
	}
}

func newTestServer(t *testing.T) (*Server, *store.Store, func()) {
	st := openTestStore(t)
	service := NewService(st, audit.NewWriter(st), zerolog.Nop())
	server := NewServer(service, "127.0.0.1:0", nil, zerolog.Nop())

	cleanup := func() {
		st.Close()
	}
	return server, st, cleanup
}

func openTestStore(t *testing.T) *store.Store {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return st
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var msg messageResponse
	if err := json.NewDecoder(w.Body).Decode(&msg); err != nil {
		t.Fatalf("Failed to decode message: %v", err)
	}
	return msg.Message
}
