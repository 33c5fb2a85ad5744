package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/charm-heritage/market-cli/internal/cache"
	"github.com/charm-heritage/market-cli/internal/model"
)

// Document is one extracted report, pre-enrichment.
type Document struct {
	Name        string
	ContentHash string
	Text        string
	WordCount   int
	FromCache   bool
}

// Extractor scans a report directory, extracts text from each PDF, and
// short-circuits unchanged files through the document-text cache. A file's
// identity is (name, sha256 of bytes): renames reprocess, content edits under
// the same name reprocess as a new version.
type Extractor struct {
	text    TextExtractor
	cache   *cache.Store
	workers int
}

// NewExtractor creates an Extractor with a bounded worker pool.
func NewExtractor(text TextExtractor, cacheStore *cache.Store, workers int) *Extractor {
	if workers < 1 {
		workers = 1
	}
	return &Extractor{text: text, cache: cacheStore, workers: workers}
}

// ExtractDir processes every PDF in dir. Corrupt or unreadable files are
// logged and skipped; the scan itself only fails if the directory cannot be
// read. A missing directory is a valid empty result.
func (e *Extractor) ExtractDir(ctx context.Context, dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "extract: read dir %s", dir)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	var mu sync.Mutex
	var docs []Document

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, path := range paths {
		g.Go(func() error {
			doc, err := e.extractOne(gctx, path)
			if err != nil {
				zap.L().Warn("extract: skipping report",
					zap.String("path", path), zap.Error(err))
				return gctx.Err()
			}
			mu.Lock()
			docs = append(docs, *doc)
			mu.Unlock()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "extract: cancelled")
	}

	// Worker completion order is nondeterministic; keep output stable.
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func (e *Extractor) extractOne(ctx context.Context, path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read %s", path)
	}
	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])
	name := filepath.Base(path)

	doc := &Document{Name: name, ContentHash: hash}

	if e.cache != nil {
		entry, found, err := e.cache.Get(ctx, cache.NamespaceDocumentText, hash)
		if err != nil {
			zap.L().Warn("extract: cache read failed", zap.String("file", name), zap.Error(err))
		} else if found && !entry.Negative {
			doc.Text = string(entry.Value)
			doc.WordCount = len(strings.Fields(doc.Text))
			doc.FromCache = true
			return doc, nil
		}
	}

	text, err := e.text.ExtractText(ctx, path)
	if err != nil {
		return nil, err
	}
	doc.Text = text
	doc.WordCount = len(strings.Fields(text))

	if e.cache != nil {
		// Finish the cache write even mid-cancellation; a torn entry would
		// poison every later run.
		if err := e.cache.Put(context.WithoutCancel(ctx), cache.NamespaceDocumentText, hash, []byte(text)); err != nil {
			zap.L().Warn("extract: cache write failed", zap.String("file", name), zap.Error(err))
		}
	}
	return doc, nil
}

// Report builds a model.Report from an extracted document plus enrichment
// output.
func (d Document) Report(skills, topEntities []string, now time.Time) model.Report {
	return model.Report{
		Name:        d.Name,
		ContentHash: d.ContentHash,
		WordCount:   d.WordCount,
		Skills:      skills,
		TopEntities: topEntities,
		Text:        d.Text,
		CreatedAt:   now.UTC(),
	}
}
