package store

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// Helper function to create an in-memory store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer store.Close()

	if store.DB() == nil {
		t.Error("DB() returned nil")
	}
}

func TestCreateSchema_Idempotent(t *testing.T) {
	store := newTestStore(t)

	if err := store.CreateSchema(); err != nil {
		t.Errorf("second CreateSchema() failed: %v", err)
	}
}

func TestSuspendedTab_PutGetDelete(t *testing.T) {
	store := newTestStore(t)

	suspendedAt := time.Date(2026, 3, 1, 12, 30, 0, 123, time.UTC)
	rec := &SuspendedTab{
		TabID:       "tab-1",
		OriginalURL: "https://example.com/a?b=c",
		Title:       "Example",
		FavIconURL:  "https://example.com/favicon.ico",
		SuspendedAt: suspendedAt,
	}

	if err := store.PutSuspendedTab(rec); err != nil {
		t.Fatalf("PutSuspendedTab() failed: %v", err)
	}

	got, err := store.GetSuspendedTab("tab-1")
	if err != nil {
		t.Fatalf("GetSuspendedTab() failed: %v", err)
	}
	if got.OriginalURL != rec.OriginalURL {
		t.Errorf("OriginalURL = %q, want %q", got.OriginalURL, rec.OriginalURL)
	}
	if got.Title != "Example" {
		t.Errorf("Title = %q, want %q", got.Title, "Example")
	}
	if got.FavIconURL != rec.FavIconURL {
		t.Errorf("FavIconURL = %q, want %q", got.FavIconURL, rec.FavIconURL)
	}
	if !got.SuspendedAt.Equal(suspendedAt) {
		t.Errorf("SuspendedAt = %v, want %v", got.SuspendedAt, suspendedAt)
	}

	deleted, err := store.DeleteSuspendedTab("tab-1")
	if err != nil {
		t.Fatalf("DeleteSuspendedTab() failed: %v", err)
	}
	if !deleted {
		t.Error("DeleteSuspendedTab() = false, want true")
	}

	_, err = store.GetSuspendedTab("tab-1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSuspendedTab() after delete error = %v, want ErrNotFound", err)
	}

	deleted, err = store.DeleteSuspendedTab("tab-1")
	if err != nil {
		t.Fatalf("second DeleteSuspendedTab() failed: %v", err)
	}
	if deleted {
		t.Error("second DeleteSuspendedTab() = true, want false")
	}
}

func TestFindSuspendedTabByURL_NewestWins(t *testing.T) {
	store := newTestStore(t)

	base := time.Now()
	for i, id := range []string{"old", "new"} {
		rec := &SuspendedTab{
			TabID:       id,
			OriginalURL: "https://example.com/",
			SuspendedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.PutSuspendedTab(rec); err != nil {
			t.Fatalf("PutSuspendedTab(%s) failed: %v", id, err)
		}
	}

	got, err := store.FindSuspendedTabByURL("https://example.com/")
	if err != nil {
		t.Fatalf("FindSuspendedTabByURL() failed: %v", err)
	}
	if got.TabID != "new" {
		t.Errorf("FindSuspendedTabByURL() tab = %q, want %q", got.TabID, "new")
	}

	_, err = store.FindSuspendedTabByURL("https://missing.example/")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("FindSuspendedTabByURL(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRekeySuspendedTab(t *testing.T) {
	store := newTestStore(t)

	if err := store.PutSuspendedTab(&SuspendedTab{TabID: "a", OriginalURL: "https://a.example/", SuspendedAt: time.Now()}); err != nil {
		t.Fatalf("PutSuspendedTab() failed: %v", err)
	}

	if err := store.RekeySuspendedTab("a", "b"); err != nil {
		t.Fatalf("RekeySuspendedTab() failed: %v", err)
	}

	if _, err := store.GetSuspendedTab("b"); err != nil {
		t.Errorf("GetSuspendedTab(b) failed: %v", err)
	}
	if _, err := store.GetSuspendedTab("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSuspendedTab(a) error = %v, want ErrNotFound", err)
	}

	if err := store.RekeySuspendedTab("missing", "c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RekeySuspendedTab(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListSuspendedTabs(t *testing.T) {
	store := newTestStore(t)

	recs, err := store.ListSuspendedTabs()
	if err != nil {
		t.Fatalf("ListSuspendedTabs() failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("ListSuspendedTabs() on empty store = %d records, want 0", len(recs))
	}

	now := time.Now()
	for i := 0; i < 3; i++ {
		rec := &SuspendedTab{
			TabID:       fmt.Sprintf("tab-%d", i),
			OriginalURL: fmt.Sprintf("https://example.com/%d", i),
			SuspendedAt: now.Add(time.Duration(i) * time.Second),
		}
		if err := store.PutSuspendedTab(rec); err != nil {
			t.Fatalf("PutSuspendedTab() failed: %v", err)
		}
	}

	recs, err = store.ListSuspendedTabs()
	if err != nil {
		t.Fatalf("ListSuspendedTabs() failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("ListSuspendedTabs() = %d records, want 3", len(recs))
	}
	if recs[0].TabID != "tab-0" || recs[2].TabID != "tab-2" {
		t.Errorf("ListSuspendedTabs() order = %s..%s, want tab-0..tab-2", recs[0].TabID, recs[2].TabID)
	}
}

func TestInsertSession_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	sess := &Session{
		ID:        "s1",
		Name:      "Research",
		CreatedAt: time.Now(),
		Tabs: []SessionTab{
			{URL: "https://go.dev/", Title: "Go"},
			{URL: "https://pkg.go.dev/", Title: "Packages", FavIconURL: "https://pkg.go.dev/favicon.ico"},
		},
	}

	evicted, err := store.InsertSession(sess, 50)
	if err != nil {
		t.Fatalf("InsertSession() failed: %v", err)
	}
	if evicted != 0 {
		t.Errorf("InsertSession() evicted = %d, want 0", evicted)
	}

	got, err := store.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if got.Name != "Research" {
		t.Errorf("Name = %q, want %q", got.Name, "Research")
	}
	if len(got.Tabs) != 2 {
		t.Fatalf("len(Tabs) = %d, want 2", len(got.Tabs))
	}
	if got.Tabs[0].URL != "https://go.dev/" || got.Tabs[1].URL != "https://pkg.go.dev/" {
		t.Errorf("tabs out of order: %+v", got.Tabs)
	}
	if got.Tabs[1].FavIconURL != "https://pkg.go.dev/favicon.ico" {
		t.Errorf("FavIconURL = %q", got.Tabs[1].FavIconURL)
	}
}

func TestInsertSession_EvictsOldest(t *testing.T) {
	store := newTestStore(t)

	const limit = 5
	totalEvicted := 0
	for i := 0; i < limit+2; i++ {
		sess := &Session{
			ID:        fmt.Sprintf("s%d", i),
			Name:      fmt.Sprintf("session %d", i),
			CreatedAt: time.Now(),
			Tabs:      []SessionTab{{URL: "https://example.com/"}},
		}
		evicted, err := store.InsertSession(sess, limit)
		if err != nil {
			t.Fatalf("InsertSession(%d) failed: %v", i, err)
		}
		totalEvicted += evicted
	}

	if totalEvicted != 2 {
		t.Errorf("total evicted = %d, want 2", totalEvicted)
	}

	sessions, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	if len(sessions) != limit {
		t.Fatalf("len(ListSessions()) = %d, want %d", len(sessions), limit)
	}
	if sessions[0].ID != "s6" {
		t.Errorf("newest session = %s, want s6", sessions[0].ID)
	}
	if sessions[limit-1].ID != "s2" {
		t.Errorf("oldest retained session = %s, want s2", sessions[limit-1].ID)
	}

	// Evicted sessions take their tabs with them.
	var tabRows int
	if err := store.DB().QueryRow("SELECT COUNT(*) FROM session_tabs").Scan(&tabRows); err != nil {
		t.Fatalf("count session_tabs failed: %v", err)
	}
	if tabRows != limit {
		t.Errorf("session_tabs rows = %d, want %d", tabRows, limit)
	}
}

func TestDeleteSession(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.InsertSession(&Session{ID: "s1", Name: "one", CreatedAt: time.Now()}, 50); err != nil {
		t.Fatalf("InsertSession() failed: %v", err)
	}

	deleted, err := store.DeleteSession("nope")
	if err != nil {
		t.Fatalf("DeleteSession(nope) failed: %v", err)
	}
	if deleted {
		t.Error("DeleteSession(nope) = true, want false")
	}

	deleted, err = store.DeleteSession("s1")
	if err != nil {
		t.Fatalf("DeleteSession(s1) failed: %v", err)
	}
	if !deleted {
		t.Error("DeleteSession(s1) = false, want true")
	}

	count, err := store.CountSessions()
	if err != nil {
		t.Fatalf("CountSessions() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("CountSessions() = %d, want 0", count)
	}

	if _, err := store.GetSession("s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession(s1) error = %v, want ErrNotFound", err)
	}
}

func TestGetSession_EmptyTabs(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.InsertSession(&Session{ID: "empty", Name: "empty", CreatedAt: time.Now()}, 50); err != nil {
		t.Fatalf("InsertSession() failed: %v", err)
	}

	got, err := store.GetSession("empty")
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if got.Tabs == nil || len(got.Tabs) != 0 {
		t.Errorf("Tabs = %#v, want empty non-nil slice", got.Tabs)
	}
}
