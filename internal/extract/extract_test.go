package extract

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charm-heritage/market-cli/internal/cache"
)

type fakeText struct {
	mu    sync.Mutex
	calls []string
	texts map[string]string
	fail  map[string]bool
}

func (f *fakeText) ExtractText(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := filepath.Base(path)
	f.calls = append(f.calls, name)
	if f.fail[name] {
		return "", eris.New("corrupt pdf")
	}
	if text, ok := f.texts[name]; ok {
		return text, nil
	}
	return "default body text", nil
}

func (f *fakeText) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func writePDF(t *testing.T, dir, name string, body []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), body, 0o644))
}

func openCache(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestExtractDir(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, dir, "survey.pdf", []byte("%PDF survey bytes"))
	writePDF(t, dir, "phase-one.pdf", []byte("%PDF phase one bytes"))
	writePDF(t, dir, "notes.txt", []byte("not a pdf"))

	text := &fakeText{texts: map[string]string{
		"survey.pdf":    "survey of the project area",
		"phase-one.pdf": "phase one archaeological results",
	}}
	ex := NewExtractor(text, openCache(t), 2)

	docs, err := ex.ExtractDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	// Output is sorted by name regardless of worker completion order.
	assert.Equal(t, "phase-one.pdf", docs[0].Name)
	assert.Equal(t, "survey.pdf", docs[1].Name)
	assert.Equal(t, "phase one archaeological results", docs[0].Text)
	assert.Equal(t, 4, docs[0].WordCount)
	assert.NotEmpty(t, docs[0].ContentHash)
	assert.False(t, docs[0].FromCache)
}

func TestExtractDirCacheShortCircuit(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, dir, "survey.pdf", []byte("%PDF same bytes"))

	store := openCache(t)
	text := &fakeText{texts: map[string]string{"survey.pdf": "cached text"}}
	ex := NewExtractor(text, store, 1)

	first, err := ex.ExtractDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.False(t, first[0].FromCache)
	assert.Equal(t, 1, text.callCount())

	second, err := ex.ExtractDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.True(t, second[0].FromCache)
	assert.Equal(t, "cached text", second[0].Text)
	assert.Equal(t, 1, text.callCount(), "unchanged file must not hit the extractor again")
}

func TestExtractDirReprocessesChangedBytes(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, dir, "survey.pdf", []byte("%PDF version one"))

	store := openCache(t)
	text := &fakeText{texts: map[string]string{"survey.pdf": "v1 text"}}
	ex := NewExtractor(text, store, 1)

	first, err := ex.ExtractDir(context.Background(), dir)
	require.NoError(t, err)
	hashOne := first[0].ContentHash

	// Same name, different bytes: a new content hash, a fresh extraction.
	writePDF(t, dir, "survey.pdf", []byte("%PDF version two"))
	text.texts["survey.pdf"] = "v2 text"

	second, err := ex.ExtractDir(context.Background(), dir)
	require.NoError(t, err)
	assert.NotEqual(t, hashOne, second[0].ContentHash)
	assert.Equal(t, "v2 text", second[0].Text)
	assert.False(t, second[0].FromCache)
	assert.Equal(t, 2, text.callCount())
}

func TestExtractDirMissingDir(t *testing.T) {
	ex := NewExtractor(&fakeText{}, nil, 1)
	docs, err := ex.ExtractDir(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestExtractDirSkipsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, dir, "good.pdf", []byte("%PDF good"))
	writePDF(t, dir, "broken.pdf", []byte("%PDF broken"))

	text := &fakeText{
		texts: map[string]string{"good.pdf": "good text"},
		fail:  map[string]bool{"broken.pdf": true},
	}
	ex := NewExtractor(text, nil, 2)

	docs, err := ex.ExtractDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "good.pdf", docs[0].Name)
}

func TestDocumentReport(t *testing.T) {
	doc := Document{Name: "survey.pdf", ContentHash: "abc", Text: "body", WordCount: 1}
	report := doc.Report([]string{"GIS"}, []string{"Bureau of Land Management"}, time.Now())
	assert.Equal(t, "survey.pdf", report.Name)
	assert.Equal(t, "abc", report.ContentHash)
	assert.Equal(t, []string{"GIS"}, report.Skills)
	assert.Equal(t, 1, report.WordCount)
}
