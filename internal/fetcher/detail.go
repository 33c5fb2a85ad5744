package fetcher

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/charm-heritage/market-cli/internal/cache"
	"github.com/charm-heritage/market-cli/internal/model"
	"github.com/charm-heritage/market-cli/internal/normalize"
)

// DetailFetcher fills posting descriptions from detail pages, consulting the
// detail-page cache namespace before touching the network.
type DetailFetcher struct {
	client       *Client
	cache        *cache.Store
	descSelector string
	workers      int
	maxDescChars int
}

// NewDetailFetcher creates a DetailFetcher. workers bounds concurrency; the
// client's shared interval gate still applies across all of them.
func NewDetailFetcher(client *Client, cacheStore *cache.Store, workers, maxDescChars int) *DetailFetcher {
	if workers < 1 {
		workers = 1
	}
	if maxDescChars <= 0 {
		maxDescChars = 20000
	}
	return &DetailFetcher{
		client:       client,
		cache:        cacheStore,
		workers:      workers,
		maxDescChars: maxDescChars,
	}
}

// FetchAll populates Description on each posting in place. A failed detail
// fetch leaves an empty description rather than dropping the posting.
// Returns how many bodies were served from cache.
func (d *DetailFetcher) FetchAll(ctx context.Context, postings []model.RawPosting, descSelector string) (cacheHits int, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	hits := make(chan struct{}, len(postings))
	for i := range postings {
		g.Go(func() error {
			hit := d.fetchOne(gctx, &postings[i], descSelector)
			if hit {
				hits <- struct{}{}
			}
			// Detail failures degrade; only cancellation stops the pool.
			return gctx.Err()
		})
	}
	err = g.Wait()
	close(hits)
	return len(hits), err
}

// fetchOne fills one posting's description, reporting whether the body came
// from cache.
func (d *DetailFetcher) fetchOne(ctx context.Context, posting *model.RawPosting, descSelector string) bool {
	key := normalize.CanonicalURL(posting.URL)
	if key == "" {
		return false
	}
	log := zap.L().With(zap.String("url", key))

	var body []byte
	fromCache := false
	if d.cache != nil {
		entry, found, err := d.cache.Get(ctx, cache.NamespaceDetailPage, key)
		if err != nil {
			log.Warn("detail: cache read failed", zap.Error(err))
		} else if found && !entry.Negative {
			body = entry.Value
			fromCache = true
		}
	}

	if body == nil {
		fetched, err := d.client.Get(ctx, posting.URL)
		if err != nil {
			log.Warn("detail: fetch failed, keeping posting with empty description", zap.Error(err))
			return false
		}
		body = fetched
		if d.cache != nil {
			// Cache writes complete even when the run is being cancelled so
			// no partial entry is left behind.
			if err := d.cache.Put(context.WithoutCancel(ctx), cache.NamespaceDetailPage, key, body); err != nil {
				log.Warn("detail: cache write failed", zap.Error(err))
			}
		}
	}

	posting.Description = d.extractDescription(body, descSelector)
	return fromCache
}

// extractDescription pulls readable text from a detail page, preferring the
// configured selector, then common description containers, then whole-page
// text.
func (d *DetailFetcher) extractDescription(html []byte, descSelector string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}

	selectors := []string{descSelector, "article", "#job-description", `[class*="description"]`, `[class*="content"]`}
	var text string
	for _, sel := range selectors {
		if sel == "" {
			continue
		}
		if node := doc.Find(sel).First(); node.Length() > 0 {
			text = node.Text()
			break
		}
	}
	if text == "" {
		text = doc.Text()
	}

	text = strings.Join(strings.Fields(text), " ")
	// Truncate on characters, not bytes, so a multibyte rune is never split.
	if runes := []rune(text); len(runes) > d.maxDescChars {
		text = string(runes[:d.maxDescChars])
	}
	return text
}
