package cache

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func TestPutAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, NamespaceDetailPage, "https://example.org/jobs/1", []byte("<html>body</html>")))

	e, found, err := s.Get(ctx, NamespaceDetailPage, "https://example.org/jobs/1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("<html>body</html>"), e.Value)
	assert.False(t, e.Negative)
	assert.False(t, e.CachedAt.IsZero())
}

func TestGetMiss(t *testing.T) {
	s := newTestStore(t)

	e, found, err := s.Get(context.Background(), NamespaceGeocode, "nowhere")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, e)
}

func TestNamespaceIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Same key, different namespaces: no collision.
	require.NoError(t, s.Put(ctx, NamespaceDetailPage, "shared-key", []byte("page")))
	require.NoError(t, s.Put(ctx, NamespaceDocumentText, "shared-key", []byte("text")))

	page, found, err := s.Get(ctx, NamespaceDetailPage, "shared-key")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "page", string(page.Value))

	doc, found, err := s.Get(ctx, NamespaceDocumentText, "shared-key")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "text", string(doc.Value))

	_, found, err = s.Get(ctx, NamespaceGeocode, "shared-key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNegativeMarker(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutNegative(ctx, NamespaceGeocode, "atlantis, ocean"))

	e, found, err := s.Get(ctx, NamespaceGeocode, "atlantis, ocean")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, e.Negative)
	assert.Empty(t, e.Value)
}

func TestPutOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, NamespaceDetailPage, "k", []byte("v1")))
	require.NoError(t, s.Put(ctx, NamespaceDetailPage, "k", []byte("v2")))

	e, found, err := s.Get(ctx, NamespaceDetailPage, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v2", string(e.Value))

	// A later positive write clears a negative marker.
	require.NoError(t, s.PutNegative(ctx, NamespaceGeocode, "k"))
	require.NoError(t, s.Put(ctx, NamespaceGeocode, "k", []byte("42.1,-71.2")))
	e, found, err = s.Get(ctx, NamespaceGeocode, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, e.Negative)
}

func TestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, NamespaceDocumentText, "hash1", []byte("extracted text")))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close() //nolint:errcheck

	e, found, err := s2.Get(ctx, NamespaceDocumentText, "hash1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "extracted text", string(e.Value))
}

func TestClearAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, NamespaceDetailPage, "a", []byte("1")))
	require.NoError(t, s.Put(ctx, NamespaceDetailPage, "b", []byte("2")))
	require.NoError(t, s.Put(ctx, NamespaceGeocode, "c", []byte("3")))

	n, err := s.Count(ctx, NamespaceDetailPage)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	cleared, err := s.Clear(ctx, NamespaceDetailPage)
	require.NoError(t, err)
	assert.EqualValues(t, 2, cleared)

	n, err = s.Count(ctx, NamespaceDetailPage)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	// Other namespaces untouched.
	n, err = s.Count(ctx, NamespaceGeocode)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestConcurrentWriters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				// All workers hammer the same key; last writer wins.
				assert.NoError(t, s.Put(ctx, NamespaceDetailPage, "contended", []byte("w")))
			}
		}(i)
	}
	wg.Wait()

	e, found, err := s.Get(ctx, NamespaceDetailPage, "contended")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "w", string(e.Value))
}
