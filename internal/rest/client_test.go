package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/store"
)

func TestConversationsSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/conversations" {
			t.Errorf("path = %q, want /api/conversations", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]store.Conversation{
			{ID: "c1", Type: store.ConversationDirect, Members: []store.Member{{UserID: "me"}, {UserID: "u2"}}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	convs, err := c.Conversations(context.Background(), "tok-123")
	if err != nil {
		t.Fatalf("Conversations() error = %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want Bearer tok-123", gotAuth)
	}
	if len(convs) != 1 || convs[0].ID != "c1" {
		t.Errorf("convs = %+v, want one c1", convs)
	}
}

func TestMessagesQueryParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("conversationId"); got != "conv A/1" {
			t.Errorf("conversationId = %q, want conv A/1", got)
		}
		_ = json.NewEncoder(w).Encode([]store.Message{{ID: "m1", ConversationID: "conv A/1"}})
	}))
	defer srv.Close()

	msgs, err := NewClient(srv.URL, nil).Messages(context.Background(), "t", "conv A/1")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Errorf("msgs = %+v, want one m1", msgs)
	}
}

func TestCreateConversationPostsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var req CreateConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if req.Type != store.ConversationGroup || len(req.MemberIDs) != 2 || req.Name != "Night shift" {
			t.Errorf("req = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(store.Conversation{ID: "c9", Type: req.Type, Name: req.Name})
	}))
	defer srv.Close()

	conv, err := NewClient(srv.URL, nil).CreateConversation(context.Background(), "t", CreateConversationRequest{
		Type:      store.ConversationGroup,
		MemberIDs: []string{"u1", "u2"},
		Name:      "Night shift",
	})
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	if conv.ID != "c9" {
		t.Errorf("conv.ID = %q, want c9", conv.ID)
	}
}

func TestOnlineUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/presence/online" {
			t.Errorf("path = %q, want /api/presence/online", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"online":["u1","u3"]}`))
	}))
	defer srv.Close()

	online, err := NewClient(srv.URL, nil).OnlineUsers(context.Background(), "t")
	if err != nil {
		t.Fatalf("OnlineUsers() error = %v", err)
	}
	if len(online) != 2 || online[0] != "u1" || online[1] != "u3" {
		t.Errorf("online = %v, want [u1 u3]", online)
	}
}

func TestNon2xxReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).Conversations(context.Background(), "stale")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.Status)
	}
}

func TestBadJSONIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>gateway error</html>"))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, nil).Conversations(context.Background(), "t"); err == nil {
		t.Error("expected decode error for non-JSON body")
	}
}
