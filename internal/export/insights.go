package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/charm-heritage/market-cli/internal/model"
)

// programFormats maps a skill to the program formats it signals demand for.
// Skills not listed fall back to workshop/certificate.
var programFormats = map[string][]string{
	"ArcGIS":                 {"certificate", "microlearning", "undergrad"},
	"ArcGIS Pro":             {"certificate", "microlearning", "undergrad"},
	"QGIS":                   {"certificate", "microlearning", "undergrad"},
	"NAGPRA":                 {"workshop", "post-bacc", "grad"},
	"LiDAR":                  {"certificate", "undergrad"},
	"Photogrammetry (3D)":    {"certificate", "workshop", "undergrad"},
	"Project Management":     {"certificate", "post-bacc", "workshop"},
	"Collections Management": {"certificate", "post-bacc", "workshop"},
	"OSHA 10":                {"microlearning", "workshop", "certificate"},
}

var defaultFormats = []string{"workshop", "certificate"}

// RenderInsights produces the market insights brief as markdown.
func RenderInsights(snap model.AnalysisSnapshot) string {
	var b strings.Builder

	b.WriteString("# Market Insights\n\n")
	fmt.Fprintf(&b, "Generated %s\n\n", snap.RunAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "- Total job postings: **%d**\n", snap.NumJobs)
	fmt.Fprintf(&b, "- Unique employers: **%d**\n", snap.UniqueEmployers)
	fmt.Fprintf(&b, "- Geocoded postings: **%d**\n\n", snap.Geocoded)

	b.WriteString("## In-demand Skills\n\n")
	if len(snap.TopSkills) == 0 {
		b.WriteString("- (no skill signals found)\n")
	}
	for _, s := range snap.TopSkills {
		fmt.Fprintf(&b, "- %s — %d\n", s.Skill, s.Count)
	}
	b.WriteString("\n")

	if snap.Salary != nil {
		b.WriteString("## Salary Signal\n\n")
		fmt.Fprintf(&b, "- Postings with salary: **%d**\n", snap.Salary.SampleSize)
		fmt.Fprintf(&b, "- Annualized range: $%.0f – $%.0f (mean $%.0f)\n\n",
			snap.Salary.MinAnnual, snap.Salary.MaxAnnual, snap.Salary.MeanAnnual)
	}

	b.WriteString("## Program Recommendations\n\n")
	if len(snap.TopSkills) == 0 {
		b.WriteString("- (insufficient data)\n")
	}
	limit := min(len(snap.TopSkills), 12)
	for _, s := range snap.TopSkills[:limit] {
		formats, ok := programFormats[s.Skill]
		if !ok {
			formats = defaultFormats
		}
		fmt.Fprintf(&b, "- **%s** (demand signal: %d) → %s\n", s.Skill, s.Count, strings.Join(formats, ", "))
	}

	return b.String()
}

// WriteInsights renders the insights brief and writes it via temp-file rename.
func WriteInsights(snap model.AnalysisSnapshot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "export: create output dir")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(RenderInsights(snap)), 0o644); err != nil {
		return eris.Wrap(err, "export: write insights")
	}
	return eris.Wrap(os.Rename(tmp, path), "export: finalize insights")
}
