package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	gojwt "github.com/golang-jwt/jwt/v5"

	"feedsync/internal/config"
	"feedsync/internal/feed"
)

// backend is a minimal REST server for the app tests.
type backend struct {
	mu       sync.Mutex
	liked    bool
	likes    int
	read     map[string]bool
	username string
	queries  []string
	auth     []string
}

func newBackend() *backend {
	return &backend{likes: 2, read: map[string]bool{}, username: "alice"}
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
	post := func() map[string]any {
		return map[string]any{
			"id": "p1", "username": "bob", "content": "hello",
			"created_at": "2024-01-15T10:00:00Z", "likes_count": b.likes,
			"is_liked_by_me": b.liked, "reply_count": 1,
		}
	}

	mux.HandleFunc("GET /post", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.queries = append(b.queries, r.URL.Query().Get("q"))
		b.auth = append(b.auth, r.Header.Get("Authorization"))
		writeJSON(w, []any{post()})
	})
	mux.HandleFunc("GET /post_detail/p1", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, post())
	})
	mux.HandleFunc("GET /replies/p1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []any{map[string]any{"id": "r1", "username": "carol", "content": "hi", "reply_id": "p1"}})
	})
	mux.HandleFunc("POST /likes", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.liked = true
		b.likes++
		writeJSON(w, map[string]any{"likes_count": b.likes, "is_liked_by_me": true})
	})
	mux.HandleFunc("POST /post", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]string{"message": "content too long"})
	})
	mux.HandleFunc("GET /notifications", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, []any{
			map[string]any{"id": "n1", "notificationType": "like", "sourceUsername": "bob", "isRead": b.read["n1"]},
			map[string]any{"id": "n2", "notificationType": "follow", "sourceUsername": "carol", "isRead": true},
		})
	})
	mux.HandleFunc("PUT /notifications/n1", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.read["n1"] = true
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /notification/unread", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		n := 1
		if b.read["n1"] {
			n = 0
		}
		writeJSON(w, map[string]int{"count": n})
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, map[string]any{"username": b.username, "profile_image_url": nil})
	})
	mux.HandleFunc("PUT /user", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.username = body.Username
		writeJSON(w, map[string]any{"username": b.username, "profile_image_url": nil})
	})
	return mux
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		BaseDir: dir,
		LogDir:  filepath.Join(dir, "log"),
		HTTP:    config.HTTPConfig{BaseURL: baseURL, TimeoutSeconds: 5},
		Session: config.SessionConfig{Type: "memory"},
		Blob:    config.BlobConfig{Type: "memory"},
		Journal: config.JournalConfig{Type: "memory"},
	}
}

func testToken(t *testing.T) string {
	t.Helper()
	s, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"user_id": "u1",
		"email":   "alice@example.com",
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

// newSignedInApp returns an app talking to a fresh backend, signed in as u1.
func newSignedInApp(t *testing.T) (*FeedApp, *backend) {
	t.Helper()
	b := newBackend()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	a, err := NewFeedApp(context.Background(), testConfig(t, srv.URL), "test", nil, Options{})
	if err != nil {
		t.Fatalf("NewFeedApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })

	if _, err := a.SignIn(context.Background(), testToken(t)); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	return a, b
}

func TestFeedApp_SignedOutLoadsFail(t *testing.T) {
	b := newBackend()
	srv := httptest.NewServer(b.handler())
	defer srv.Close()

	a, err := NewFeedApp(context.Background(), testConfig(t, srv.URL), "test", nil, Options{})
	if err != nil {
		t.Fatalf("NewFeedApp() error = %v", err)
	}
	defer a.Close()

	if a.Identity().IsPresent() {
		t.Fatal("Identity() is present before sign in")
	}
	_, err = a.Timeline(context.Background(), "")
	if !errors.Is(err, feed.ErrNotAuthenticated) {
		t.Errorf("Timeline() error = %v, want not authenticated", err)
	}
}

func TestFeedApp_Timeline(t *testing.T) {
	a, b := newSignedInApp(t)
	ctx := context.Background()

	posts, err := a.Timeline(ctx, "")
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "p1" {
		t.Fatalf("Timeline() = %+v, want [p1]", posts)
	}

	if _, err := a.Timeline(ctx, "  golang "); err != nil {
		t.Fatalf("Timeline(query) error = %v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if got := b.queries[len(b.queries)-1]; got != "golang" {
		t.Errorf("last query = %q, want %q", got, "golang")
	}
	for _, h := range b.auth {
		if h == "" {
			t.Error("timeline request sent without Authorization header")
		}
	}
}

func TestFeedApp_ThreadAndLike(t *testing.T) {
	a, _ := newSignedInApp(t)
	ctx := context.Background()

	thread, err := a.Thread(ctx, "p1")
	if err != nil {
		t.Fatalf("Thread() error = %v", err)
	}
	if len(thread) != 2 || thread[0].ID != "p1" || thread[1].ID != "r1" {
		t.Fatalf("Thread() = %+v, want [p1 r1]", thread)
	}

	p, err := a.ToggleLike(ctx, "p1")
	if err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}
	if !p.LikedByMe || p.LikeCount != 3 {
		t.Errorf("ToggleLike() = liked %v count %d, want liked true count 3", p.LikedByMe, p.LikeCount)
	}

	recs, err := a.History(ctx, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Kind != feed.MutationToggleLike || recs[0].Outcome != feed.OutcomeCommitted {
		t.Errorf("History() = %+v, want one committed toggle_like", recs)
	}
}

func TestFeedApp_PostServerError(t *testing.T) {
	a, _ := newSignedInApp(t)
	ctx := context.Background()

	_, err := a.Post(ctx, "hello", "")
	if !errors.Is(err, feed.ErrServer) {
		t.Fatalf("Post() error = %v, want server error", err)
	}
	var fe *feed.Error
	if errors.As(err, &fe) && fe.Message != "content too long" {
		t.Errorf("Post() message = %q, want %q", fe.Message, "content too long")
	}
	if a.op.Status != "error" {
		t.Errorf("operation status = %q, want error", a.op.Status)
	}

	recs, _ := a.History(ctx, 0)
	if len(recs) != 1 || recs[0].Outcome != feed.OutcomeFailed {
		t.Errorf("History() = %+v, want one failed mutation", recs)
	}
}

func TestFeedApp_PostRejectsNonImage(t *testing.T) {
	a, _ := newSignedInApp(t)

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("plain text"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := a.Post(context.Background(), "hello", path)
	if !errors.Is(err, feed.ErrValidation) {
		t.Errorf("Post() error = %v, want validation error", err)
	}
}

func TestFeedApp_Notifications(t *testing.T) {
	a, _ := newSignedInApp(t)
	ctx := context.Background()

	all, err := a.Notifications(ctx, false)
	if err != nil {
		t.Fatalf("Notifications() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Notifications() returned %d, want 2", len(all))
	}

	unread, err := a.Notifications(ctx, true)
	if err != nil {
		t.Fatalf("Notifications(unread) error = %v", err)
	}
	if len(unread) != 1 || unread[0].ID != "n1" {
		t.Fatalf("Notifications(unread) = %+v, want [n1]", unread)
	}

	if err := a.MarkRead(ctx, "n1"); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	n, err := a.UnreadCount(ctx)
	if err != nil {
		t.Fatalf("UnreadCount() error = %v", err)
	}
	if n != 0 {
		t.Errorf("UnreadCount() = %d, want 0", n)
	}
}

func TestFeedApp_Profile(t *testing.T) {
	a, _ := newSignedInApp(t)
	ctx := context.Background()

	p, err := a.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if p.UserID != "u1" || p.Username != "alice" {
		t.Errorf("Profile() = %+v, want u1/alice", p)
	}

	p, err = a.UpdateProfile(ctx, "alice2", "")
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if p.Username != "alice2" {
		t.Errorf("UpdateProfile() username = %q, want alice2", p.Username)
	}
}

func TestFeedApp_SignOut(t *testing.T) {
	a, _ := newSignedInApp(t)

	if err := a.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if a.Identity().IsPresent() {
		t.Error("Identity() still present after SignOut")
	}
}

func TestFeedApp_CloseWritesLog(t *testing.T) {
	b := newBackend()
	srv := httptest.NewServer(b.handler())
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	a, err := NewFeedApp(context.Background(), cfg, "whoami", nil, Options{})
	if err != nil {
		t.Fatalf("NewFeedApp() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.LogDir, "feedsync.log"))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if len(data) == 0 {
		t.Error("log file is empty")
	}
}
