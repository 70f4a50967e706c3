package sessions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/blackwell-systems/tabprune/internal/browser"
	"github.com/blackwell-systems/tabprune/internal/browser/browsertest"
	"github.com/blackwell-systems/tabprune/internal/store"
	"github.com/blackwell-systems/tabprune/internal/suspender"
)

func newTestManager(t *testing.T) (*Manager, *browsertest.Registry, *store.Store) {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ph, err := suspender.NewPlaceholder("http://127.0.0.1:7878/suspended")
	require.NoError(t, err)

	reg := browsertest.New()
	return New(reg, st, ph, zaptest.NewLogger(t)), reg, st
}

func TestSave_FiltersAndDecodes(t *testing.T) {
	m, _, _ := newTestManager(t)

	tabs := []browser.Tab{
		{URL: "https://a.test/", Title: "A", FavIconURL: "https://a.test/icon.png"},
		{URL: "chrome://settings", Title: "Settings"},
		{URL: "", Title: "Blank"},
		{URL: m.placeholder.URL("https://b.test/page?x=1", "B page"), Title: "B page"},
		{URL: "about:blank"},
		{URL: "https://c.test/", Title: "C"},
	}

	sess, err := m.Save(context.Background(), "work", tabs)
	require.NoError(t, err)

	assert.Equal(t, "work", sess.Name)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, []store.SessionTab{
		{URL: "https://a.test/", Title: "A", FavIconURL: "https://a.test/icon.png"},
		{URL: "https://b.test/page?x=1", Title: "B page"},
		{URL: "https://c.test/", Title: "C"},
	}, sess.Tabs)
}

func TestSave_DefaultName(t *testing.T) {
	m, _, _ := newTestManager(t)
	at := time.Date(2026, 4, 2, 9, 5, 7, 0, time.Local)
	m.now = func() time.Time { return at }

	sess, err := m.Save(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "Session 2026-04-02 09:05:07", sess.Name)
	assert.Empty(t, sess.Tabs)
}

func TestSave_UniqueIDs(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		sess, err := m.Save(ctx, "", nil)
		require.NoError(t, err)
		assert.False(t, seen[sess.ID], "duplicate id %s", sess.ID)
		seen[sess.ID] = true
	}
}

func TestSaveCurrentWindow(t *testing.T) {
	m, reg, _ := newTestManager(t)
	reg.Add(browser.Tab{URL: "https://one.test/", WindowID: 1, Active: true})
	reg.Add(browser.Tab{URL: "https://other-window.test/", WindowID: 2})

	sess, err := m.SaveCurrentWindow(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, sess.Tabs, 1)
	assert.Equal(t, "https://one.test/", sess.Tabs[0].URL)
}

func TestSave_CapsHistory(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	var first, last *store.Session
	for i := 0; i < MaxSessions+1; i++ {
		sess, err := m.Save(ctx, fmt.Sprintf("s%d", i), nil)
		require.NoError(t, err)
		if i == 0 {
			first = sess
		}
		last = sess
	}

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, MaxSessions)
	assert.Equal(t, last.ID, list[0].ID, "newest first")
	assert.Equal(t, "s1", list[len(list)-1].Name)
	for _, sess := range list {
		assert.NotEqual(t, first.ID, sess.ID, "oldest session should be evicted")
	}
}

func TestList_Empty(t *testing.T) {
	m, _, _ := newTestManager(t)

	list, err := m.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestRestore(t *testing.T) {
	m, reg, _ := newTestManager(t)
	ctx := context.Background()

	sess, err := m.Save(ctx, "", []browser.Tab{
		{URL: "https://a.test/"},
		{URL: "https://b.test/"},
		{URL: "https://c.test/"},
	})
	require.NoError(t, err)

	reg.FailCreate("https://b.test/", errors.New("blocked"))

	ok, err := m.Restore(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"https://a.test/", "https://c.test/"}, reg.Created())
}

func TestRestore_Unknown(t *testing.T) {
	m, reg, _ := newTestManager(t)

	ok, err := m.Restore(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, reg.Created())
}

func TestDelete(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	keep, err := m.Save(ctx, "keep", nil)
	require.NoError(t, err)
	drop, err := m.Save(ctx, "drop", nil)
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, drop.ID))
	require.NoError(t, m.Delete(ctx, "does-not-exist"))

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep.ID, list[0].ID)
}

func TestExportImport(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	orig, err := m.Save(ctx, "reading", []browser.Tab{
		{URL: "https://a.test/", Title: "A"},
		{URL: "https://b.test/", Title: "B"},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Export(ctx, orig.ID, &buf))
	assert.Contains(t, buf.String(), `"name": "reading"`)

	imported, err := m.Import(ctx, &buf)
	require.NoError(t, err)
	assert.NotEqual(t, orig.ID, imported.ID)
	assert.Equal(t, "reading", imported.Name)
	assert.Equal(t, orig.Tabs, imported.Tabs)

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, imported.ID, list[0].ID)
}

func TestExport_Unknown(t *testing.T) {
	m, _, _ := newTestManager(t)

	err := m.Export(context.Background(), "missing", &bytes.Buffer{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestImport_DropsPrivilegedAndBadJSON(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	sess, err := m.Import(ctx, strings.NewReader(`{"tabs":[{"url":"chrome://flags"},{"url":"https://ok.test/"}]}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sess.Name, "Session "))
	require.Len(t, sess.Tabs, 1)
	assert.Equal(t, "https://ok.test/", sess.Tabs[0].URL)

	_, err = m.Import(ctx, strings.NewReader(`{not json`))
	assert.Error(t, err)
}
