package fetcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/charm-heritage/market-cli/internal/config"
	"github.com/charm-heritage/market-cli/internal/model"
)

// ListingPage is one traversed listing page with its parsed posting stubs.
type ListingPage struct {
	URL      string
	Number   int
	Postings []model.RawPosting
}

// Paginator lazily walks a source's listing pages.
type Paginator struct {
	client   *Client
	source   config.SourceConfig
	maxPages int
}

// NewPaginator creates a Paginator. maxPages caps traversal even when every
// page advertises a next link.
func NewPaginator(client *Client, source config.SourceConfig, maxPages int) *Paginator {
	if maxPages <= 0 {
		maxPages = 10
	}
	return &Paginator{client: client, source: source, maxPages: maxPages}
}

// Pages streams listing pages until the page cap, a missing next link, a
// page with zero new postings, or a fetch failure. The caller must drain
// both channels; they close when traversal ends. A listing fetch failure
// ends this source's traversal only — it surfaces on the error channel so
// the run can carry on with other sources.
func (p *Paginator) Pages(ctx context.Context) (<-chan ListingPage, <-chan error) {
	pageCh := make(chan ListingPage)
	errCh := make(chan error, 1)

	go func() {
		defer close(pageCh)
		defer close(errCh)

		log := zap.L().With(zap.String("source", p.source.Name))
		visited := make(map[string]bool)
		seenPostings := make(map[string]bool)
		pageURL := p.source.URL

		for num := 1; num <= p.maxPages; num++ {
			if pageURL == "" || visited[pageURL] {
				return
			}
			visited[pageURL] = true

			if ctx.Err() != nil {
				errCh <- ctx.Err()
				return
			}

			html, err := p.client.Get(ctx, pageURL)
			if err != nil {
				errCh <- err
				return
			}

			postings, err := ParseListing(p.source, html, pageURL)
			if err != nil {
				// Malformed markup: log, skip this page, keep walking.
				log.Warn("paginator: parse failed, skipping page",
					zap.String("url", pageURL), zap.Error(err))
				postings = nil
			}

			fresh := postings[:0:0]
			for _, posting := range postings {
				if seenPostings[posting.URL] {
					continue
				}
				seenPostings[posting.URL] = true
				fresh = append(fresh, posting)
			}

			if len(fresh) == 0 && num > 1 {
				// A page contributing nothing new means we are looping.
				log.Debug("paginator: no new postings, stopping", zap.String("url", pageURL))
				return
			}

			select {
			case pageCh <- ListingPage{URL: pageURL, Number: num, Postings: fresh}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}

			pageURL = FindNextPage(html, pageURL)
		}
	}()

	return pageCh, errCh
}
