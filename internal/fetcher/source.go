package fetcher

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/charm-heritage/market-cli/internal/config"
	"github.com/charm-heritage/market-cli/internal/model"
)

// ParseListing extracts posting stubs from a listing page using the source's
// selector rules, falling back to a generic job-link heuristic when the
// selectors produce nothing. Markup drift therefore degrades, it does not
// abort.
func ParseListing(src config.SourceConfig, html []byte, baseURL string) ([]model.RawPosting, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	var postings []model.RawPosting
	if src.ItemSelector != "" {
		doc.Find(src.ItemSelector).Each(func(_ int, item *goquery.Selection) {
			href, ok := item.Find("a[href]").First().Attr("href")
			if !ok {
				return
			}
			link := resolveRef(base, href)
			if link == "" {
				return
			}
			p := model.RawPosting{
				Source:     src.Name,
				URL:        link,
				Title:      selectText(item, src.TitleSelector, "h3, h2, a"),
				Company:    selectText(item, src.CompanySelector, `[class*="company"]`),
				Location:   selectText(item, src.LocationSelector, `[class*="location"]`),
				DatePosted: itemDate(item, src.DateSelector),
			}
			if p.Title == "" {
				p.Title = "Job"
			}
			postings = append(postings, p)
		})
	}

	if len(postings) == 0 {
		postings = parseGeneric(doc, base, src.Name)
	}
	return postings, nil
}

// parseGeneric collects anchors that look like job links.
func parseGeneric(doc *goquery.Document, base *url.URL, source string) []model.RawPosting {
	var postings []model.RawPosting
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(strings.ToLower(href), "job") {
			return
		}
		link := resolveRef(base, href)
		if link == "" {
			return
		}
		title := strings.TrimSpace(a.Text())
		if title == "" {
			title = "Job"
		}
		postings = append(postings, model.RawPosting{
			Source: source,
			Title:  title,
			URL:    link,
		})
	})
	return postings
}

var nextTextRe = regexp.MustCompile(`(?i)next`)

// FindNextPage resolves the "next page" link from a listing page. It tries
// rel=next, then aria-label/title hints, then link text, then pagination
// containers. Relative candidates resolve against the page URL, and links
// leaving the host are discarded. Empty result means traversal is done.
func FindNextPage(html []byte, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	var cand string
	pick := func(sel *goquery.Selection) {
		if cand != "" {
			return
		}
		if href, ok := sel.Attr("href"); ok && href != "" {
			cand = href
		}
	}

	doc.Find(`a[rel~="next"]`).Each(func(_ int, a *goquery.Selection) { pick(a) })

	if cand == "" {
		doc.Find("a[aria-label], a[title]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			label, _ := a.Attr("aria-label")
			title, _ := a.Attr("title")
			if nextTextRe.MatchString(label) || nextTextRe.MatchString(title) {
				pick(a)
			}
			return cand == ""
		})
	}

	if cand == "" {
		doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			t := strings.ToLower(strings.TrimSpace(a.Text()))
			if nextTextRe.MatchString(t) || t == ">" || t == "»" {
				pick(a)
			}
			return cand == ""
		})
	}

	if cand == "" {
		doc.Find(`[class*="pagination"], [class*="pager"]`).EachWithBreak(func(_ int, p *goquery.Selection) bool {
			cur := p.Find(`[class*="active"], [class*="current"]`).First()
			if cur.Length() == 0 {
				return true
			}
			next := cur.NextAllFiltered("a[href], li").Find("a[href]").First()
			if next.Length() == 0 {
				next = cur.NextAllFiltered("a[href]").First()
			}
			pick(next)
			return cand == ""
		})
	}

	if cand == "" {
		return ""
	}

	next := resolveRef(base, cand)
	if next == "" {
		return ""
	}
	// Stay on the same host.
	nu, err := url.Parse(next)
	if err != nil || (nu.Host != "" && nu.Host != base.Host) {
		return ""
	}
	return next
}

// selectText returns trimmed text for the first of (configured, fallback)
// selectors that matches.
func selectText(item *goquery.Selection, configured, fallback string) string {
	for _, sel := range []string{configured, fallback} {
		if sel == "" {
			continue
		}
		if found := item.Find(sel).First(); found.Length() > 0 {
			if t := strings.TrimSpace(found.Text()); t != "" {
				return t
			}
		}
	}
	return ""
}

// itemDate prefers a <time datetime> attribute over visible date text.
func itemDate(item *goquery.Selection, configured string) string {
	if tm := item.Find("time").First(); tm.Length() > 0 {
		if dt, ok := tm.Attr("datetime"); ok && dt != "" {
			return dt
		}
		if t := strings.TrimSpace(tm.Text()); t != "" {
			return t
		}
	}
	return selectText(item, configured, `[class*="date"]`)
}

func resolveRef(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}
