package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"neurochat/internal/cache"
	"neurochat/internal/config"
	"neurochat/internal/db"
	"neurochat/internal/llm"
	"neurochat/internal/models"
)

const testBotToken = "test-bot-token"

// fakeLLM scripts the inference collaborator for transport tests.
type fakeLLM struct {
	reply       string
	completeErr error
	fragments   []string
	streamErr   error
}

func (f *fakeLLM) Complete(ctx context.Context, turns []llm.Turn) (string, error) {
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return f.reply, nil
}

func (f *fakeLLM) Stream(ctx context.Context, turns []llm.Turn) (llm.CompletionStream, error) {
	final := f.streamErr
	if final == nil {
		final = io.EOF
	}
	return &fakeStream{fragments: f.fragments, final: final}, nil
}

type fakeStream struct {
	fragments []string
	final     error
	pos       int
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", s.final
	}
	fragment := s.fragments[s.pos]
	s.pos++
	return fragment, nil
}

func (s *fakeStream) Close() error { return nil }

func newTestServer(t *testing.T, client llm.Client) *httptest.Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.Auth.BotToken = testBotToken
	cfg.Auth.AccessTokenTTL = time.Hour
	cfg.Auth.CodeTTL = 5 * time.Minute

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	server, err := NewServer(cfg, database, client, cache.NewCodeCache(time.Minute))
	if err != nil {
		t.Fatalf("building server: %v", err)
	}

	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	return resp, data
}

func issueCode(t *testing.T, ts *httptest.Server, telegramID int64) string {
	t.Helper()

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bot/auth-codes", map[string]any{
		"telegram_id": telegramID,
		"username":    "alice",
		"first_name":  "Alice",
	}, map[string]string{"X-Bot-Token": testBotToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("issuing code: status %d: %s", resp.StatusCode, body)
	}

	var parsed IssueCodeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("decoding issue response: %v", err)
	}
	if parsed.ExpiresIn != 300 {
		t.Errorf("expected 300s expiry, got %d", parsed.ExpiresIn)
	}
	return parsed.Code
}

func login(t *testing.T, ts *httptest.Server, telegramID int64) string {
	t.Helper()

	code := issueCode(t, ts, telegramID)
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/verify-code", map[string]string{"code": code}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verifying code: status %d: %s", resp.StatusCode, body)
	}

	var parsed TokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("decoding token response: %v", err)
	}
	if parsed.TokenType != "bearer" || parsed.AccessToken == "" {
		t.Fatalf("unexpected token response: %+v", parsed)
	}
	return parsed.AccessToken
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var parsed ErrorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("decoding error response %q: %v", body, err)
	}
	return parsed.Error.Code
}

func TestBotEndpointRequiresToken(t *testing.T) {
	ts := newTestServer(t, &fakeLLM{})

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bot/auth-codes", map[string]any{"telegram_id": 42}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing token: expected 401, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bot/auth-codes", map[string]any{"telegram_id": 42},
		map[string]string{"X-Bot-Token": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token: expected 401, got %d", resp.StatusCode)
	}
}

func TestVerifyCodeFlow(t *testing.T) {
	ts := newTestServer(t, &fakeLLM{})

	code := issueCode(t, ts, 42)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/verify-code", map[string]string{"code": code}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var parsed TokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("decoding token response: %v", err)
	}
	if parsed.User == nil || parsed.User.TelegramID != 42 {
		t.Errorf("unexpected user: %+v", parsed.User)
	}

	// The code is spent.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/verify-code", map[string]string{"code": code}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("replay: expected 401, got %d", resp.StatusCode)
	}
	if got := errorCode(t, body); got != "AUTH_FAILED" {
		t.Errorf("replay: expected AUTH_FAILED, got %s", got)
	}

	// The minted token works.
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/v1/auth/me", nil, bearer(parsed.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var me models.User
	if err := json.Unmarshal(body, &me); err != nil {
		t.Fatalf("decoding user: %v", err)
	}
	if me.TelegramID != 42 {
		t.Errorf("me: unexpected user %+v", me)
	}
}

func TestVerifyCodeValidation(t *testing.T) {
	ts := newTestServer(t, &fakeLLM{})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/verify-code", map[string]string{}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing code: expected 400, got %d", resp.StatusCode)
	}
	if got := errorCode(t, body); got != "INVALID_REQUEST" {
		t.Errorf("expected INVALID_REQUEST, got %s", got)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/verify-code", map[string]string{"code": "WRONG123"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unknown code: expected 401, got %d", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	ts := newTestServer(t, &fakeLLM{})

	for _, path := range []string{"/api/v1/auth/me", "/api/v1/chat/sessions"} {
		resp, _ := doJSON(t, http.MethodGet, ts.URL+path, nil, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 without token, got %d", path, resp.StatusCode)
		}
		resp, _ = doJSON(t, http.MethodGet, ts.URL+path, nil, bearer("garbage"))
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 with bad token, got %d", path, resp.StatusCode)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, &fakeLLM{reply: "Hi there!"})
	token := login(t, ts, 42)

	// Create.
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/chat/sessions", map[string]string{}, bearer(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var session models.SessionSummary
	if err := json.Unmarshal(body, &session); err != nil {
		t.Fatalf("decoding session: %v", err)
	}
	if session.Title != "New chat" {
		t.Errorf("expected default title, got %q", session.Title)
	}

	// Send.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/v1/chat/send", map[string]string{
		"session_id": session.ID,
		"content":    "hello",
	}, bearer(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var exchange SendMessageResponse
	if err := json.Unmarshal(body, &exchange); err != nil {
		t.Fatalf("decoding exchange: %v", err)
	}
	if exchange.AssistantMessage == nil || exchange.AssistantMessage.Content != "Hi there!" {
		t.Errorf("unexpected assistant message: %+v", exchange.AssistantMessage)
	}

	// List sessions: title was derived, count reflects both turns.
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/v1/chat/sessions", nil, bearer(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var sessions []models.SessionSummary
	if err := json.Unmarshal(body, &sessions); err != nil {
		t.Fatalf("decoding sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Title != "hello" || sessions[0].MessageCount != 2 {
		t.Errorf("unexpected session list: %+v", sessions)
	}

	// List messages.
	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/chat/sessions/%s/messages", ts.URL, session.ID), nil, bearer(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("messages: expected 200, got %d", resp.StatusCode)
	}
	var messages []models.Message
	if err := json.Unmarshal(body, &messages); err != nil {
		t.Fatalf("decoding messages: %v", err)
	}
	if len(messages) != 2 || messages[0].Role != models.RoleUser || messages[1].Role != models.RoleAssistant {
		t.Errorf("unexpected transcript: %+v", messages)
	}

	// Delete, then the session is gone.
	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/chat/sessions/"+session.ID, nil, bearer(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/chat/sessions/%s/messages", ts.URL, session.ID), nil, bearer(token))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("after delete: expected 404, got %d", resp.StatusCode)
	}
	if got := errorCode(t, body); got != "NOT_FOUND" {
		t.Errorf("after delete: expected NOT_FOUND, got %s", got)
	}
}

func TestSessionsAreOwnerScoped(t *testing.T) {
	ts := newTestServer(t, &fakeLLM{reply: "ok"})
	aliceToken := login(t, ts, 42)
	bobToken := login(t, ts, 99)

	_, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/chat/sessions", map[string]string{"title": "alice's"}, bearer(aliceToken))
	var session models.SessionSummary
	if err := json.Unmarshal(body, &session); err != nil {
		t.Fatalf("decoding session: %v", err)
	}

	// Bob cannot see, post to, or delete it; the responses are the same 404
	// a nonexistent session would give.
	resp, _ := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/chat/sessions/%s/messages", ts.URL, session.ID), nil, bearer(bobToken))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("messages: expected 404, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/chat/send", map[string]string{
		"session_id": session.ID, "content": "hi",
	}, bearer(bobToken))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("send: expected 404, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/chat/sessions/"+session.ID, nil, bearer(bobToken))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("delete: expected 404, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/v1/chat/sessions", nil, bearer(bobToken))
	var sessions []models.SessionSummary
	if err := json.Unmarshal(body, &sessions); err != nil {
		t.Fatalf("decoding sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("bob should see no sessions, got %d", len(sessions))
	}
}

func TestSendMessageErrors(t *testing.T) {
	upstreamServer := newTestServer(t, &fakeLLM{completeErr: llm.ErrUpstream})
	token := login(t, upstreamServer, 42)

	_, body := doJSON(t, http.MethodPost, upstreamServer.URL+"/api/v1/chat/sessions", map[string]string{}, bearer(token))
	var session models.SessionSummary
	if err := json.Unmarshal(body, &session); err != nil {
		t.Fatalf("decoding session: %v", err)
	}

	// Whitespace-only content passes the required check but fails semantic
	// validation.
	resp, body := doJSON(t, http.MethodPost, upstreamServer.URL+"/api/v1/chat/send", map[string]string{
		"session_id": session.ID, "content": "   ",
	}, bearer(token))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank content: expected 400, got %d", resp.StatusCode)
	}
	if got := errorCode(t, body); got != "MESSAGE_EMPTY" {
		t.Errorf("blank content: expected MESSAGE_EMPTY, got %s", got)
	}

	// Unknown session.
	resp, _ = doJSON(t, http.MethodPost, upstreamServer.URL+"/api/v1/chat/send", map[string]string{
		"session_id": "sess_missing", "content": "hi",
	}, bearer(token))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session: expected 404, got %d", resp.StatusCode)
	}

	// Collaborator failure surfaces as a bad gateway.
	resp, body = doJSON(t, http.MethodPost, upstreamServer.URL+"/api/v1/chat/send", map[string]string{
		"session_id": session.ID, "content": "hi",
	}, bearer(token))
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("upstream failure: expected 502, got %d", resp.StatusCode)
	}
	if got := errorCode(t, body); got != "UPSTREAM_ERROR" {
		t.Errorf("upstream failure: expected UPSTREAM_ERROR, got %s", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeLLM{})

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
