package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/charm-heritage/market-cli/internal/model"
)

// fingerprintPrefixLen bounds how much of the description feeds the
// fingerprint, so tail edits like a changed "apply by" date do not mint a new
// identity.
const fingerprintPrefixLen = 280

// Fingerprint returns a stable content hash over (title, company,
// description prefix), all lowercased and trimmed.
func Fingerprint(title, company, description string) string {
	desc := description
	if len(desc) > fingerprintPrefixLen {
		desc = desc[:fingerprintPrefixLen]
	}
	s := fmt.Sprintf("%s|%s|%s",
		strings.ToLower(strings.TrimSpace(title)),
		strings.ToLower(strings.TrimSpace(company)),
		strings.ToLower(strings.TrimSpace(desc)),
	)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Deduper tracks seen canonical URLs and fingerprints across the current run
// and persisted history. Either identity matching marks a duplicate.
type Deduper struct {
	urls         map[string]bool
	fingerprints map[string]bool
	dropped      int
}

// NewDeduper creates a Deduper seeded with identities already in the store.
func NewDeduper(seenURLs, seenFingerprints []string) *Deduper {
	d := &Deduper{
		urls:         make(map[string]bool, len(seenURLs)),
		fingerprints: make(map[string]bool, len(seenFingerprints)),
	}
	for _, u := range seenURLs {
		d.urls[u] = true
	}
	for _, f := range seenFingerprints {
		d.fingerprints[f] = true
	}
	return d
}

// Seen reports whether the posting's canonical URL or fingerprint was already
// observed, and records both either way.
func (d *Deduper) Seen(canonicalURL, fingerprint string) bool {
	dup := (canonicalURL != "" && d.urls[canonicalURL]) || d.fingerprints[fingerprint]
	if canonicalURL != "" {
		d.urls[canonicalURL] = true
	}
	d.fingerprints[fingerprint] = true
	if dup {
		d.dropped++
	}
	return dup
}

// Dropped returns how many duplicates were filtered. Duplicates are counted,
// never errored.
func (d *Deduper) Dropped() int {
	return d.dropped
}

// Posting cleans a raw posting into an enriched-ready JobPosting. Returns
// nil when the record is a duplicate per the deduper.
func Posting(raw model.RawPosting, d *Deduper, now time.Time) *model.JobPosting {
	title := CleanText(raw.Title)
	company := CleanText(raw.Company)
	location := CleanText(raw.Location)
	desc := CleanText(raw.Description)
	canonical := CanonicalURL(raw.URL)

	fp := Fingerprint(title, company, desc)
	if d != nil && d.Seen(canonical, fp) {
		return nil
	}

	p := &model.JobPosting{
		Source:      raw.Source,
		Title:       title,
		Company:     company,
		Location:    location,
		URL:         canonical,
		Description: desc,
		Fingerprint: fp,
		DatePosted:  ParseDate(raw.DatePosted),
		JobType:     BucketJobType(title, desc),
		Seniority:   BucketSeniority(title, desc),
		FirstSeenAt: now.UTC(),
		LastSeenAt:  now.UTC(),
	}

	p.City, p.State = ParseLocation(location)

	sal := ExtractSalary(desc)
	p.SalaryMin = sal.Min
	p.SalaryMax = sal.Max
	p.Currency = sal.Currency

	return p
}
