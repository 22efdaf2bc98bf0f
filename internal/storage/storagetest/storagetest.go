// Package storagetest holds the behaviour every storage.Store implementation
// must share. Backend packages call Run from their own tests.
package storagetest

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-workspace-backend/internal/domain"
	"github.com/sirosfoundation/go-workspace-backend/internal/storage"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) storage.Store

var base = time.Unix(1_700_000_000, 0).UTC()

// Run exercises the full storage contract against the factory's stores
func Run(t *testing.T, newStore Factory) {
	t.Run("Workspaces", func(t *testing.T) { testWorkspaces(t, newStore(t)) })
	t.Run("ChatsOrderedAndIsolated", func(t *testing.T) { testChats(t, newStore(t)) })
	t.Run("DocumentLifecycle", func(t *testing.T) { testDocumentLifecycle(t, newStore(t)) })
	t.Run("DocumentListFilter", func(t *testing.T) { testDocumentList(t, newStore(t)) })
	t.Run("DocumentMissingID", func(t *testing.T) { testDocumentMissing(t, newStore(t)) })
	t.Run("PresenceUpsert", func(t *testing.T) { testPresenceUpsert(t, newStore(t)) })
	t.Run("PresenceConcurrentUpsert", func(t *testing.T) { testPresenceConcurrent(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(t.Context())) })
}

func testWorkspaces(t *testing.T, s storage.Store) {
	ctx := t.Context()

	_, err := s.Workspaces().GetByName(ctx, "acme")
	require.ErrorIs(t, err, storage.ErrNotFound)

	ws := &domain.Workspace{Name: "acme", Password: "cHc="}
	require.NoError(t, s.Workspaces().Create(ctx, ws))

	got, err := s.Workspaces().GetByName(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Name)
	assert.Equal(t, "cHc=", got.Password)

	err = s.Workspaces().Create(ctx, &domain.Workspace{Name: "acme", Password: "b3RoZXI="})
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	got, err = s.Workspaces().GetByName(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "cHc=", got.Password, "duplicate create must not overwrite the password")
}

func testChats(t *testing.T, s storage.Store) {
	ctx := t.Context()

	// Inserted out of time order; ties keep insertion order.
	msgs := []*domain.ChatMessage{
		{Workspace: "a", Time: base.Add(2 * time.Second), Content: "third"},
		{Workspace: "a", Time: base, Content: "first"},
		{Workspace: "b", Time: base, Content: "other workspace"},
		{Workspace: "a", Time: base, Content: "second"},
	}
	for _, m := range msgs {
		require.NoError(t, s.Chats().Create(ctx, m))
	}

	got, err := s.Chats().ListByWorkspace(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"first", "second", "third"}, contents(got))

	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Time.Before(got[i-1].Time), "messages must be in non-decreasing time order")
	}

	got, err = s.Chats().ListByWorkspace(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func contents(msgs []*domain.ChatMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func testDocumentLifecycle(t *testing.T, s storage.Store) {
	ctx := t.Context()
	docs := s.Documents()

	doc := &domain.Document{Workspace: "w", Time: base, Date: "2024-01-01", Title: "t1", Content: "c1"}
	require.NoError(t, docs.Create(ctx, doc))
	require.NotZero(t, doc.ID, "Create must assign an ID")

	list, err := docs.List(ctx, "w", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, doc.ID, list[0].ID)
	assert.Equal(t, "t1", list[0].Title)

	got, err := docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "t1", got.Title)
	assert.Equal(t, "c1", got.Content)
	assert.Equal(t, "2024-01-01", got.Date)

	require.NoError(t, docs.Update(ctx, doc.ID, "t2", "c2"))
	got, err = docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "t2", got.Title)
	assert.Equal(t, "c2", got.Content)
	assert.Equal(t, "2024-01-01", got.Date, "update must not touch the date")

	require.NoError(t, docs.Delete(ctx, doc.ID))
	_, err = docs.GetByID(ctx, doc.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testDocumentList(t *testing.T, s storage.Store) {
	ctx := t.Context()
	docs := s.Documents()

	seed := []*domain.Document{
		{Workspace: "w", Time: base.Add(time.Minute), Date: "mon", Title: "later"},
		{Workspace: "w", Time: base, Date: "tue", Title: "earlier"},
		{Workspace: "w", Time: base.Add(2 * time.Minute), Date: "mon", Title: "latest"},
		{Workspace: "x", Time: base, Date: "mon", Title: "foreign"},
	}
	for _, d := range seed {
		require.NoError(t, docs.Create(ctx, d))
	}

	all, err := docs.List(ctx, "w", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"earlier", "later", "latest"}, titles(all))

	mon, err := docs.List(ctx, "w", "mon")
	require.NoError(t, err)
	assert.Equal(t, []string{"later", "latest"}, titles(mon))

	none, err := docs.List(ctx, "w", "sun")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func titles(docs []*domain.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Title)
	}
	return out
}

func testDocumentMissing(t *testing.T, s storage.Store) {
	ctx := t.Context()

	_, err := s.Documents().GetByID(ctx, 999)
	require.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)

	assert.NoError(t, s.Documents().Update(ctx, 999, "t", "c"))
	assert.NoError(t, s.Documents().Delete(ctx, 999))
}

func testPresenceUpsert(t *testing.T, s storage.Store) {
	ctx := t.Context()
	p := s.Presence()

	require.NoError(t, p.Upsert(ctx, &domain.PresenceEntry{Workspace: "w", UserID: "alice", LastPing: base}))
	require.NoError(t, p.Upsert(ctx, &domain.PresenceEntry{Workspace: "w", UserID: "bob", LastPing: base.Add(-time.Hour)}))
	require.NoError(t, p.Upsert(ctx, &domain.PresenceEntry{Workspace: "v", UserID: "carol", LastPing: base}))

	users, err := p.ListSince(ctx, "w", base)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, users, "boundary is inclusive")

	users, err = p.ListSince(ctx, "w", base.Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, users)

	// A second ping moves bob forward instead of adding a row.
	require.NoError(t, p.Upsert(ctx, &domain.PresenceEntry{Workspace: "w", UserID: "bob", LastPing: base}))
	users, err = p.ListSince(ctx, "w", base.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, users)

	users, err = p.ListSince(ctx, "w", base)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, users)
}

func testPresenceConcurrent(t *testing.T, s storage.Store) {
	ctx := t.Context()
	p := s.Presence()

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry := &domain.PresenceEntry{Workspace: "w", UserID: "u", LastPing: base.Add(time.Duration(i) * time.Second)}
			if err := p.Upsert(ctx, entry); err != nil {
				errs <- fmt.Errorf("upsert %d: %w", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	latest := base.Add((n - 1) * time.Second)
	users, err := p.ListSince(ctx, "w", latest)
	require.NoError(t, err)
	assert.Equal(t, []string{"u"}, users, "exactly one row carrying the maximum ping")

	users, err = p.ListSince(ctx, "w", latest.Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, users)
}
