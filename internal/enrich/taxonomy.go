// Package enrich derives skills, named entities, and sentiment from cleaned
// posting and report text.
package enrich

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// TaxonomyEntry maps one canonical skill to its aliases.
type TaxonomyEntry struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category,omitempty"`
	Aliases  []string `yaml:"aliases,omitempty"`
}

type taxonomyFile struct {
	Skills []TaxonomyEntry `yaml:"skills"`
}

// alias is one matchable string with its canonical skill.
type alias struct {
	text      string // lowercased
	canonical string
}

// Taxonomy is the alias → canonical skill lookup, built once per run.
// Aliases are held longest-first so compound terms win over their prefixes
// and matching is independent of declaration order.
type Taxonomy struct {
	aliases []alias
	byName  map[string]TaxonomyEntry
}

// LoadTaxonomy reads a taxonomy YAML file.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: read taxonomy %s", path)
	}
	var f taxonomyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "enrich: parse taxonomy")
	}
	if len(f.Skills) == 0 {
		return nil, eris.Errorf("enrich: taxonomy %s defines no skills", path)
	}
	return NewTaxonomy(f.Skills), nil
}

// NewTaxonomy builds a Taxonomy from entries. Each entry's name is an
// implicit alias for itself.
func NewTaxonomy(entries []TaxonomyEntry) *Taxonomy {
	t := &Taxonomy{byName: make(map[string]TaxonomyEntry, len(entries))}
	seen := make(map[string]bool)
	for _, e := range entries {
		t.byName[e.Name] = e
		for _, a := range append([]string{e.Name}, e.Aliases...) {
			la := strings.ToLower(strings.TrimSpace(a))
			if la == "" || seen[la] {
				continue
			}
			seen[la] = true
			t.aliases = append(t.aliases, alias{text: la, canonical: e.Name})
		}
	}
	// Longest alias first; ties broken lexically for determinism.
	sort.Slice(t.aliases, func(i, j int) bool {
		if len(t.aliases[i].text) != len(t.aliases[j].text) {
			return len(t.aliases[i].text) > len(t.aliases[j].text)
		}
		return t.aliases[i].text < t.aliases[j].text
	})
	return t
}

// Len returns the number of distinct aliases.
func (t *Taxonomy) Len() int {
	return len(t.aliases)
}

// Entry returns the taxonomy entry for a canonical skill name.
func (t *Taxonomy) Entry(name string) (TaxonomyEntry, bool) {
	e, ok := t.byName[name]
	return e, ok
}

// MatchSkills returns the canonical skills whose aliases occur in text as
// whole words. Overlapping alias hits resolve to the longest alias, so
// "ArcGIS Pro" yields one skill, not two. Output is sorted and free of
// duplicates; for a fixed taxonomy it is identical across runs.
func (t *Taxonomy) MatchSkills(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	claimed := make([]bool, len(lower))
	found := make(map[string]bool)

	for _, a := range t.aliases {
		for from := 0; ; {
			i := strings.Index(lower[from:], a.text)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(a.text)
			from = start + 1

			if !wordBoundary(lower, start, end) {
				continue
			}
			if spanClaimed(claimed, start, end) {
				continue
			}
			for k := start; k < end; k++ {
				claimed[k] = true
			}
			found[a.canonical] = true
		}
	}

	if len(found) == 0 {
		return nil
	}
	out := make([]string, 0, len(found))
	for name := range found {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// wordBoundary reports whether [start,end) is not butted against letters,
// mirroring the alias table's whole-word contract.
func wordBoundary(s string, start, end int) bool {
	if start > 0 && isLetter(s[start-1]) {
		return false
	}
	if end < len(s) && isLetter(s[end]) {
		return false
	}
	return true
}

func spanClaimed(claimed []bool, start, end int) bool {
	for k := start; k < end; k++ {
		if claimed[k] {
			return true
		}
	}
	return false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// DefaultTaxonomy returns the built-in CRM/heritage skill table used when no
// taxonomy file is configured.
func DefaultTaxonomy() *Taxonomy {
	return NewTaxonomy([]TaxonomyEntry{
		{Name: "ArcGIS Pro", Category: "gis"},
		{Name: "ArcGIS", Category: "gis", Aliases: []string{"Arc GIS"}},
		{Name: "QGIS", Category: "gis"},
		{Name: "GPS", Category: "field", Aliases: []string{"Trimble"}},
		{Name: "LiDAR", Category: "remote-sensing"},
		{Name: "Photogrammetry (3D)", Category: "remote-sensing", Aliases: []string{"photogrammetry"}},
		{Name: "GIS", Category: "gis", Aliases: []string{"geographic information systems"}},
		{Name: "NAGPRA", Category: "compliance"},
		{Name: "Section 106", Category: "compliance", Aliases: []string{"section 106 compliance"}},
		{Name: "NEPA", Category: "compliance"},
		{Name: "NHPA", Category: "compliance"},
		{Name: "Shovel Testing", Category: "field", Aliases: []string{"shovel test", "shovel tests"}},
		{Name: "Excavation", Category: "field"},
		{Name: "Pedestrian Survey", Category: "field", Aliases: []string{"archaeological survey"}},
		{Name: "Artifact Analysis", Category: "lab", Aliases: []string{"lithic analysis", "ceramic analysis"}},
		{Name: "Collections Management", Category: "curation", Aliases: []string{"curation"}},
		{Name: "Technical Writing", Category: "reporting", Aliases: []string{"report writing"}},
		{Name: "Project Management", Category: "management"},
		{Name: "OSHA 10", Category: "safety", Aliases: []string{"osha certification"}},
		{Name: "Total Station", Category: "field"},
	})
}
