// Package normalize cleans raw postings, extracts salary and location hints,
// and filters duplicates by canonical URL or content fingerprint.
package normalize

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
)

var tagRe = regexp.MustCompile(`<[^>]+>`)

// CleanText strips residual markup, normalizes NBSP, and collapses
// whitespace runs to single spaces.
func CleanText(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "\ufeff", "")
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

// trackingParams are query keys stripped during URL canonicalization.
var trackingParams = map[string]bool{
	"gclid":   true,
	"fbclid":  true,
	"msclkid": true,
	"mc_cid":  true,
	"mc_eid":  true,
	"mkt_tok": true,
	"ref":     true,
}

// CanonicalURL normalizes a posting URL so the same posting reached through
// different tracking links dedupes to one record: lowercased scheme/host,
// fragment dropped, tracking parameters removed, remaining query sorted.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if trackingParams[lk] || strings.HasPrefix(lk, "utm_") {
			q.Del(k)
		}
	}
	for k := range q {
		vals := q[k]
		sort.Strings(vals)
		q[k] = vals
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// dateLayouts are the posting-date formats seen across sources.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02T15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"01/02/2006",
	"2 January 2006",
}

// ParseDate parses a free-text posting date. Unparseable text yields nil,
// never an error; the raw text is already preserved upstream.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
