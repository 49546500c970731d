package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"parley/internal/app/dto"
	chatsvc "parley/internal/app/services/chat"
	domainauth "parley/internal/domain/auth"
	domainuser "parley/internal/domain/user"
	busmemory "parley/internal/infra/bus/memory"
	"parley/internal/infra/config"
	"parley/internal/infra/obs"
	"parley/internal/infra/storage/memory"
)

// staticResolver maps fixed bearer tokens to users, standing in for the
// auth service.
type staticResolver map[string]*domainuser.User

func (r staticResolver) ResolveToken(ctx context.Context, token string) (*domainuser.User, error) {
	if user, ok := r[token]; ok {
		return user, nil
	}
	return nil, domainauth.ErrSessionNotFound
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	users := memory.NewUserRepository()
	resolver := staticResolver{}
	for _, name := range []string{"alice", "bob", "mallory"} {
		u := &domainuser.User{
			ID:        domainuser.ID(name),
			Email:     name + "@example.com",
			Name:      name,
			CreatedAt: time.Now(),
		}
		if err := users.Save(context.Background(), u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
		resolver[name+"-token"] = u
	}

	chat := &chatsvc.Service{
		Store: memory.NewChatStore(),
		Users: users,
		Bus:   busmemory.NewBus(),
	}
	server := NewServer(config.Config{Env: "test", HTTPAddr: ":0"}, obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Users:          UserHandler{Users: users},
		Chat:           ChatHandler{Chat: chat},
		AuthMiddleware: AuthMiddleware{Resolver: resolver}.Handle,
	})
	return server.Handler
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestConversationLifecycle(t *testing.T) {
	handler := newTestServer(t)

	// Anonymous requests are rejected before touching the service.
	if rec := doJSON(t, handler, http.MethodGet, "/api/v1/conversations", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list status = %d, want 401", rec.Code)
	}

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/conversations", "alice-token", map[string]any{"user_id": "bob"})
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d body %s", rec.Code, rec.Body.String())
	}
	var conv dto.Conversation
	decodeInto(t, rec, &conv)
	if conv.ID == "" || conv.IsGroup {
		t.Fatalf("conversation = %+v", conv)
	}

	// Creating again from the other side resolves to the same conversation.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/conversations", "bob-token", map[string]any{"user_id": "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat create status = %d", rec.Code)
	}
	var again dto.Conversation
	decodeInto(t, rec, &again)
	if again.ID != conv.ID {
		t.Fatalf("repeat created %s, want %s", again.ID, conv.ID)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", "alice-token", map[string]any{"body": "hello"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("send status = %d body %s", rec.Code, rec.Body.String())
	}
	var msg dto.ChatMessage
	decodeInto(t, rec, &msg)
	if msg.Body != "hello" || msg.Sender.ID != "alice" {
		t.Fatalf("message = %+v", msg)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", "bob-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list messages status = %d", rec.Code)
	}
	var page dto.ChatMessageList
	decodeInto(t, rec, &page)
	if len(page.Items) != 1 || page.Items[0].Body != "hello" {
		t.Fatalf("messages = %+v", page.Items)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/seen", "bob-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("seen status = %d", rec.Code)
	}
	var seen dto.SeenResult
	decodeInto(t, rec, &seen)
	if seen.UpdatedCount != 1 {
		t.Fatalf("UpdatedCount = %d, want 1", seen.UpdatedCount)
	}

	// Non-members are refused.
	if rec := doJSON(t, handler, http.MethodGet, "/api/v1/conversations/"+conv.ID, "mallory-token", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("outsider status = %d, want 403", rec.Code)
	}
}

func TestCreateConversationErrors(t *testing.T) {
	handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/conversations", "alice-token", map[string]any{"user_id": "ghost"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown user status = %d, want 404", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/conversations", "alice-token", map[string]any{"user_id": "alice"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("self conversation status = %d, want 400", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/conversations", "alice-token", map[string]any{"is_group": true, "name": "trip", "members": []string{"bob"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("small group status = %d, want 400", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/conversations", "alice-token", map[string]any{"is_group": true, "name": "trip", "members": []string{"bob", "mallory"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("group create status = %d body %s", rec.Code, rec.Body.String())
	}
}

func TestListMessagesCursorValidation(t *testing.T) {
	handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/conversations", "alice-token", map[string]any{"user_id": "bob"})
	var conv dto.Conversation
	decodeInto(t, rec, &conv)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages?before=tomorrow", "alice-token", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad cursor status = %d, want 400", rec.Code)
	}
}
