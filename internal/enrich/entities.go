package enrich

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// EntityLabel categorizes a recognized entity.
type EntityLabel string

const (
	LabelOrg   EntityLabel = "ORG"
	LabelPlace EntityLabel = "PLACE"
)

// Entity is one recognized organization or place mention.
type Entity struct {
	Text  string      `json:"text"`
	Label EntityLabel `json:"label"`
}

// Recognizer extracts organization and place entities from text. Output is
// advisory: callers treat failure as an empty list and never retry.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Entity, error)
}

// orgSuffixes mark capitalized spans as organizations.
var orgSuffixes = []string{
	"Inc", "LLC", "Ltd", "Corp", "Company", "Group", "Associates",
	"Consultants", "Consulting", "Services", "Solutions", "Partners",
	"University", "College", "Museum", "Society", "Foundation",
	"Department", "Bureau", "Commission", "Authority", "Tribe", "Nation",
}

// placeSuffixes mark capitalized spans as places.
var placeSuffixes = []string{
	"National Forest", "National Park", "National Monument", "State Park",
	"County", "Valley", "Basin", "River", "Reservation", "District",
}

// capSpanRe matches runs of capitalized words, allowing "of"/"the" inside the
// span. Coordinating words ("and", "for") end a span: they join adjacent
// entities more often than they appear inside one name.
var capSpanRe = regexp.MustCompile(`\b[A-Z][A-Za-z&.'-]*(?:\s+(?:of|the|[A-Z][A-Za-z&.'-]*))*\b`)

// PatternRecognizer is a lightweight rule-based Recognizer: capitalized
// spans classified by suffix vocabulary. It trades recall for zero external
// dependencies and total determinism.
type PatternRecognizer struct{}

// NewPatternRecognizer creates a PatternRecognizer.
func NewPatternRecognizer() *PatternRecognizer {
	return &PatternRecognizer{}
}

// Recognize scans text for organization- and place-shaped capitalized spans.
func (r *PatternRecognizer) Recognize(_ context.Context, text string) ([]Entity, error) {
	var out []Entity
	seen := make(map[string]bool)

	for _, span := range capSpanRe.FindAllString(text, -1) {
		span = strings.TrimSpace(span)
		// Single connectives and sentence-initial words are noise.
		if !strings.Contains(span, " ") {
			continue
		}
		label, ok := classifySpan(span)
		if !ok {
			continue
		}
		key := string(label) + "|" + span
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Entity{Text: span, Label: label})
	}
	return out, nil
}

func classifySpan(span string) (EntityLabel, bool) {
	for _, suf := range placeSuffixes {
		if strings.HasSuffix(span, suf) {
			return LabelPlace, true
		}
	}
	for _, suf := range orgSuffixes {
		if strings.HasSuffix(span, suf) || strings.HasSuffix(span, suf+".") {
			return LabelOrg, true
		}
	}
	return "", false
}

// TopEntities ranks entity texts by mention count and returns up to n,
// ties broken alphabetically so output is stable.
func TopEntities(entities []Entity, n int) []string {
	counts := make(map[string]int)
	for _, e := range entities {
		counts[e.Text]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}
