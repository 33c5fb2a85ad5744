package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charm-heritage/market-cli/internal/config"
)

const listingHTML = `
<html><body>
<div class="job_listings">
  <article class="job_listing">
    <h3>Field Archaeologist</h3>
    <div class="company">High Desert CRM</div>
    <span class="location">Flagstaff, AZ</span>
    <time datetime="2026-08-01">Aug 1</time>
    <a href="/jobs/field-archaeologist/">View</a>
  </article>
  <article class="job_listing">
    <h3>GIS Specialist</h3>
    <div class="company">Basin Research Group</div>
    <span class="location">Reno, NV</span>
    <a href="https://jobs.example.org/jobs/gis-specialist/">View</a>
  </article>
</div>
</body></html>`

func acraSource() config.SourceConfig {
	return config.SourceConfig{
		Name:         "acra",
		URL:          "https://jobs.example.org/jobs/",
		ItemSelector: ".job_listings .job_listing",
	}
}

func TestParseListing(t *testing.T) {
	postings, err := ParseListing(acraSource(), []byte(listingHTML), "https://jobs.example.org/jobs/")
	require.NoError(t, err)
	require.Len(t, postings, 2)

	assert.Equal(t, "acra", postings[0].Source)
	assert.Equal(t, "Field Archaeologist", postings[0].Title)
	assert.Equal(t, "High Desert CRM", postings[0].Company)
	assert.Equal(t, "Flagstaff, AZ", postings[0].Location)
	assert.Equal(t, "2026-08-01", postings[0].DatePosted)
	// Relative link resolved against the page URL.
	assert.Equal(t, "https://jobs.example.org/jobs/field-archaeologist/", postings[0].URL)

	assert.Equal(t, "GIS Specialist", postings[1].Title)
	assert.Equal(t, "https://jobs.example.org/jobs/gis-specialist/", postings[1].URL)
}

func TestParseListingGenericFallback(t *testing.T) {
	html := `<html><body>
		<a href="/jobs/123">Crew Chief Position</a>
		<a href="/about">About Us</a>
		<a href="https://other.example.com/jobs/9">Lab Tech</a>
	</body></html>`

	src := config.SourceConfig{Name: "misc", ItemSelector: ".does-not-match"}
	postings, err := ParseListing(src, []byte(html), "https://example.org/board/")
	require.NoError(t, err)
	require.Len(t, postings, 2)
	assert.Equal(t, "Crew Chief Position", postings[0].Title)
	assert.Equal(t, "https://example.org/jobs/123", postings[0].URL)
	assert.Equal(t, "Lab Tech", postings[1].Title)
}

func TestParseListingEmptyPage(t *testing.T) {
	postings, err := ParseListing(acraSource(), []byte("<html><body></body></html>"), "https://jobs.example.org/")
	require.NoError(t, err)
	assert.Empty(t, postings, "zero postings is a valid outcome")
}

func TestFindNextPageRelNext(t *testing.T) {
	html := []byte(`<a rel="next" href="/jobs/page/2/">Next</a>`)
	next := FindNextPage(html, "https://example.org/jobs/")
	assert.Equal(t, "https://example.org/jobs/page/2/", next)
}

func TestFindNextPageAriaLabel(t *testing.T) {
	html := []byte(`<a aria-label="Next page" href="?page=2">&raquo;</a>`)
	next := FindNextPage(html, "https://example.org/jobs/")
	assert.Equal(t, "https://example.org/jobs/?page=2", next)
}

func TestFindNextPageLinkText(t *testing.T) {
	html := []byte(`<a href="/jobs/p2">Next &raquo;</a>`)
	next := FindNextPage(html, "https://example.org/jobs/")
	assert.Equal(t, "https://example.org/jobs/p2", next)
}

func TestFindNextPagePaginationContainer(t *testing.T) {
	html := []byte(`<ul class="pagination">
		<li class="current"><span>1</span></li>
		<li><a href="/jobs/page/2/">2</a></li>
	</ul>`)
	next := FindNextPage(html, "https://example.org/jobs/")
	assert.Equal(t, "https://example.org/jobs/page/2/", next)
}

func TestFindNextPageNone(t *testing.T) {
	assert.Empty(t, FindNextPage([]byte(`<a href="/jobs/1">A posting</a>`), "https://example.org/jobs/"))
	assert.Empty(t, FindNextPage([]byte(``), "https://example.org/jobs/"))
}

func TestFindNextPageRejectsCrossHost(t *testing.T) {
	html := []byte(`<a rel="next" href="https://evil.example.net/page/2">Next</a>`)
	assert.Empty(t, FindNextPage(html, "https://example.org/jobs/"))
}
