package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsync/internal/model"
	"docsync/internal/repository"
)

func setupTestRedis(t *testing.T) (*DocumentRedis, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewDocumentRedis("redis://"+s.Addr(), "document:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, s
}

func newDoc(id string) *model.Document {
	now := time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC)
	return &model.Document{ID: id, Title: "title " + id, Content: "body", CreatedAt: now, UpdatedAt: now}
}

func TestNewDocumentRedis_BadURL(t *testing.T) {
	_, err := NewDocumentRedis("://nope", "document:")
	assert.Error(t, err)
}

func TestDocumentRedis_PutGet(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	doc := newDoc("a")
	require.NoError(t, store.Put(ctx, doc))
	assert.True(t, s.Exists("document:a"))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	missing, err := store.Get(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDocumentRedis_Delete(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, newDoc("a")))

	removed, err := store.Delete(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, "body", removed.Content)
	assert.False(t, s.Exists("document:a"))

	again, err := store.Delete(ctx, "a")
	assert.NoError(t, err)
	assert.Nil(t, again)
}

func TestDocumentRedis_Update(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, newDoc("a")))

	got, err := store.Update(ctx, "a", func(d *model.Document) error {
		d.Content = "hello"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "title a", got.Title)

	stored, _ := store.Get(ctx, "a")
	assert.Equal(t, "hello", stored.Content)

	boom := errors.New("boom")
	_, err = store.Update(ctx, "a", func(d *model.Document) error { return boom })
	assert.ErrorIs(t, err, boom)

	absent, err := store.Update(ctx, "missing", func(d *model.Document) error { return nil })
	assert.NoError(t, err)
	assert.Nil(t, absent)
}

func TestDocumentRedis_UpdateConcurrent(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, newDoc("a")))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "a", func(d *model.Document) error {
				d.Content += "x"
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, _ := store.Get(ctx, "a")
	assert.Equal(t, "body"+"xxxxxxxx", got.Content)
}

func TestDocumentRedis_Scan(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()
	for _, id := range []string{"doc-3", "doc-0", "doc-4", "doc-1", "doc-2"} {
		require.NoError(t, store.Put(ctx, newDoc(id)))
	}
	// Keys outside the prefix are ignored.
	require.NoError(t, s.Set("session:x", "y"))

	var pages [][]string
	token := ""
	for {
		res, err := store.Scan(ctx, repository.PageQuery{Limit: 2, Token: token})
		require.NoError(t, err)
		var ids []string
		for _, d := range res.Items {
			ids = append(ids, d.ID)
		}
		pages = append(pages, ids)
		if res.NextToken == "" {
			break
		}
		token = res.NextToken
	}
	assert.Equal(t, [][]string{{"doc-0", "doc-1"}, {"doc-2", "doc-3"}, {"doc-4"}}, pages)

	_, err := store.Scan(ctx, repository.PageQuery{Token: "%%%"})
	assert.ErrorIs(t, err, repository.ErrInvalidToken)
}

func TestDocumentRedis_ScanExactPages(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		require.NoError(t, store.Put(ctx, newDoc(fmt.Sprintf("doc-%02d", i))))
	}
	// Overwrites and deletes keep the index in step with the values.
	require.NoError(t, store.Put(ctx, newDoc("doc-00")))
	_, err := store.Delete(ctx, "doc-24")
	require.NoError(t, err)

	res, err := store.Scan(ctx, repository.PageQuery{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, res.Items, 10)
	assert.NotEmpty(t, res.NextToken)

	res, err = store.Scan(ctx, repository.PageQuery{Limit: 10, Token: res.NextToken})
	require.NoError(t, err)
	assert.Len(t, res.Items, 10)
	assert.Equal(t, "doc-10", res.Items[0].ID)

	res, err = store.Scan(ctx, repository.PageQuery{Limit: 10, Token: res.NextToken})
	require.NoError(t, err)
	assert.Len(t, res.Items, 4)
	assert.Empty(t, res.NextToken)

	res, err = store.Scan(ctx, repository.PageQuery{Limit: 24})
	require.NoError(t, err)
	assert.Len(t, res.Items, 24)
	assert.Empty(t, res.NextToken)
}

func TestDocumentRedis_Unavailable(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()
	s.Close()

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, repository.ErrUnavailable)
	assert.ErrorIs(t, store.Ping(ctx), repository.ErrUnavailable)
}
