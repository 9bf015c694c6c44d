package forum

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wkchan/forum-reply-bot/internal/config"
)

// memCreds is an in-memory Credentials for tests.
type memCreds struct {
	values map[string]string
	setErr error
}

func newMemCreds() *memCreds { return &memCreds{values: map[string]string{}} }

func (m *memCreds) Get(key, def string) string {
	if v, ok := m.values[key]; ok {
		return v
	}
	return def
}

func (m *memCreds) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func newTestClient(t *testing.T, srv *httptest.Server, creds *memCreds) *Client {
	t.Helper()
	cfg := config.ForumConfig{
		QueryURL:      srv.URL,
		CommandURL:    srv.URL,
		Origin:        "https://forum.example.test",
		Username:      "user",
		Password:      "pass",
		ProbePageGUID: "probe-guid",
	}
	c := NewClient(cfg, creds, zerolog.Nop())
	c.Limiter = rate.NewLimiter(rate.Inf, 1) // no pacing in tests
	return c
}

func TestValidateSession_NoToken_SkipsProbe(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := newTestClient(t, srv, newMemCreds())
	if c.ValidateSession(context.Background()) {
		t.Fatalf("expected invalid session without token")
	}
	if called {
		t.Fatalf("probe must not be sent without a token")
	}
}

func TestValidateSession_StatusHandling(t *testing.T) {
	status := http.StatusOK
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(status)
	}))
	defer srv.Close()

	creds := newMemCreds()
	creds.values["auth_token"] = "tok-1"
	c := newTestClient(t, srv, creds)

	if !c.ValidateSession(context.Background()) {
		t.Fatalf("expected valid session on 200")
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("Authorization = %q, want Bearer tok-1", gotAuth)
	}

	status = http.StatusUnauthorized
	if c.ValidateSession(context.Background()) {
		t.Fatalf("expected invalid session on 401")
	}
}

func TestValidateSession_TransportError_False(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	creds := newMemCreds()
	creds.values["auth_token"] = "tok"
	c := newTestClient(t, srv, creds)
	srv.Close() // force connection failure

	if c.ValidateSession(context.Background()) {
		t.Fatalf("expected false on transport error")
	}
}

func TestLogin_Success_PersistsAndAppliesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/AuthorizationService/ParticipantLogin":
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			if r.PostForm.Get("username") != "user" || r.PostForm.Get("password") != "pass" {
				t.Errorf("unexpected credentials: %v", r.PostForm)
			}
			w.Write([]byte("fresh-token"))
		case "/PageService/AllowedToNavigateToPage":
			if r.Header.Get("Authorization") != "Bearer fresh-token" {
				t.Errorf("new token not applied: %q", r.Header.Get("Authorization"))
			}
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	creds := newMemCreds()
	c := newTestClient(t, srv, creds)

	if !c.Login(context.Background()) {
		t.Fatalf("expected login success")
	}
	if c.Token() != "fresh-token" {
		t.Fatalf("token not replaced: %q", c.Token())
	}
	if creds.Get("auth_token", "") != "fresh-token" {
		t.Fatalf("token not written through to the credential store")
	}
	// Follow-up request carries the new token (asserted in handler).
	if !c.ValidateSession(context.Background()) {
		t.Fatalf("probe with new token should succeed")
	}
}

func TestLogin_Failure_LeavesPreviousToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	creds := newMemCreds()
	creds.values["auth_token"] = "old-token"
	c := newTestClient(t, srv, creds)

	if c.Login(context.Background()) {
		t.Fatalf("expected login failure on 403")
	}
	if c.Token() != "old-token" {
		t.Fatalf("previous token must stay untouched, got %q", c.Token())
	}
	if creds.Get("auth_token", "") != "old-token" {
		t.Fatalf("stored token must stay untouched")
	}
}

func TestLogin_EmptyBody_Fails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK) // no body
	}))
	defer srv.Close()

	c := newTestClient(t, srv, newMemCreds())
	if c.Login(context.Background()) {
		t.Fatalf("expected failure on empty token body")
	}
}

func TestEnsureSession_ProbeInvalid_LoginOnce(t *testing.T) {
	logins := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/PageService/AllowedToNavigateToPage":
			w.WriteHeader(http.StatusUnauthorized)
		case "/AuthorizationService/ParticipantLogin":
			logins++
			w.Write([]byte("tok"))
		}
	}))
	defer srv.Close()

	creds := newMemCreds()
	creds.values["auth_token"] = "expired"
	c := newTestClient(t, srv, creds)

	if err := c.EnsureSession(context.Background()); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if logins != 1 {
		t.Fatalf("expected exactly one login, got %d", logins)
	}
}

func TestEnsureSession_BothFail_ErrAuthFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	creds := newMemCreds()
	creds.values["auth_token"] = "expired"
	c := newTestClient(t, srv, creds)

	err := c.EnsureSession(context.Background())
	if err == nil || err != ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestLookupPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pageListResponse{List: []pageItem{
			{Name: "Other", Guid: "g-other"},
			{Name: "傾下講下", Guid: "g-target"},
		}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, newMemCreds())

	page, err := c.LookupPage(context.Background(), "傾下講下")
	if err != nil {
		t.Fatalf("LookupPage: %v", err)
	}
	if page.GUID != "g-target" {
		t.Fatalf("page GUID = %q", page.GUID)
	}

	if _, err := c.LookupPage(context.Background(), "Nope"); err == nil {
		t.Fatalf("expected ErrPageNotFound")
	}
}

func TestListRooms_VirtualRoomAndVisibility(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req roomListRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Guid != "page-1" {
			t.Errorf("room listing guid = %q", req.Guid)
		}
		json.NewEncoder(w).Encode(roomListResponse{Rooms: []roomItem{
			{Guid: "r1", Name: "Money Talk", IsVisible: true, ConversationsCount: 12},
			{Guid: "r2", Name: "Hidden", IsVisible: false},
		}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, newMemCreds())

	rooms, err := c.ListRooms(context.Background(), "page-1")
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected virtual + 1 visible room, got %d", len(rooms))
	}
	if rooms[0].GUID != VirtualRoomGUID || rooms[0].Title != "Recent Subjects" {
		t.Fatalf("virtual room not prepended: %+v", rooms[0])
	}
	if rooms[1].GUID != "r1" || rooms[1].TopicCount != 12 {
		t.Fatalf("visible room mapped wrong: %+v", rooms[1])
	}

	c.VirtualRoomTitle = ""
	rooms, err = c.ListRooms(context.Background(), "page-1")
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].GUID != "r1" {
		t.Fatalf("virtual room should be absent when disabled: %+v", rooms)
	}
}

func TestListConversations_Mapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req conversationListRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.PageNumber != 1 || req.Limit != 3 {
			t.Errorf("pagination = %+v", req)
		}
		json.NewEncoder(w).Encode(conversationListResponse{Items: []conversationItem{
			{Guid: "c1", RoomGuid: "r9", Title: "T1", Message: "body", Username: "alice", DatePosted: "2026-01-07T15:04:51.870Z"},
			{Guid: "c2", Title: "only title", ParticipantDisplayName: "bob"},
			{Guid: "c3", CreatedByName: "carol", IsLiked: true},
		}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, newMemCreds())

	convos, err := c.ListConversations(context.Background(), "page-1", "room-1", 3)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convos) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(convos))
	}
	if convos[0].Content != "body" || convos[0].Author != "alice" || convos[0].RoomGUID != "r9" {
		t.Fatalf("conversation 0 mapped wrong: %+v", convos[0])
	}
	if convos[0].PostedAt != "2026-01-07T15:04:51.870Z" {
		t.Fatalf("PostedAt must keep the raw timestamp: %q", convos[0].PostedAt)
	}
	if convos[1].Content != "only title" || convos[1].Author != "bob" {
		t.Fatalf("Message->Title fallback broken: %+v", convos[1])
	}
	if convos[2].Author != "carol" || !convos[2].IsLiked {
		t.Fatalf("author fallback chain broken: %+v", convos[2])
	}
}

func TestReplyAndLike_SubmitsAndLikes(t *testing.T) {
	var likedGUID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ConversationService/ReplyToConversation":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
				return
			}
			var inner replyRequest
			if err := json.Unmarshal([]byte(r.FormValue("request")), &inner); err != nil {
				t.Errorf("decode request field: %v", err)
				return
			}
			if inner.Room != "room-1" || inner.Guid != "post-1" || inner.ParentMessageGuid != "post-1" {
				t.Errorf("reply targets wrong: %+v", inner)
			}
			if inner.Type != 4 || inner.Message != "好同意" {
				t.Errorf("reply payload wrong: %+v", inner)
			}
			if inner.Stimuli == nil || inner.Attachments == nil {
				t.Errorf("Stimuli/Attachments must be empty arrays, not null")
			}
			w.Write([]byte(`"new-reply-guid"`))
		case "/ConversationService/LikeConversation":
			var like likeRequest
			json.NewDecoder(r.Body).Decode(&like)
			likedGUID = like.ConversationGuid
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, newMemCreds())

	if err := c.ReplyAndLike(context.Background(), "room-1", "post-1", "好同意"); err != nil {
		t.Fatalf("ReplyAndLike: %v", err)
	}
	if likedGUID != "new-reply-guid" {
		t.Fatalf("liked GUID = %q, want new-reply-guid", likedGUID)
	}
}

func TestReplyAndLike_ReplyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, newMemCreds())
	if err := c.ReplyAndLike(context.Background(), "r", "p", "m"); err == nil {
		t.Fatalf("expected error on rejected reply")
	}
}

func TestReplyAndLike_LikeFailureIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ConversationService/ReplyToConversation":
			w.Write([]byte(`"g"`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, newMemCreds())
	if err := c.ReplyAndLike(context.Background(), "r", "p", "m"); err == nil {
		t.Fatalf("expected error when like fails")
	}
}
