package export

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/charm-heritage/market-cli/internal/model"
)

const (
	topSkillsLimit    = 30
	topEmployersLimit = 10
)

// BuildSnapshot computes the analysis summary over the full record set. It is
// a pure function of its inputs so the summary is reproducible run to run.
func BuildSnapshot(jobs []model.JobPosting, reports []model.Report, runAt time.Time) model.AnalysisSnapshot {
	snap := model.AnalysisSnapshot{
		RunAt:        runAt.UTC(),
		NumJobs:      len(jobs),
		TopSkills:    []model.SkillCount{},
		TopEmployers: []model.EmployerCount{},
	}

	employers := make(map[string]int)
	skills := make(map[string]int)
	var salaries []float64

	for _, j := range jobs {
		if j.Company != "" {
			employers[j.Company]++
		}
		for _, s := range j.Skills {
			skills[s]++
		}
		if j.Lat != nil && j.Lon != nil {
			snap.Geocoded++
		}
		// Midpoint when both bounds exist; a lone bound stands for itself.
		// Null salaries are excluded entirely, never treated as zero.
		switch {
		case j.SalaryMin != nil && j.SalaryMax != nil:
			salaries = append(salaries, (*j.SalaryMin+*j.SalaryMax)/2)
		case j.SalaryMin != nil:
			salaries = append(salaries, *j.SalaryMin)
		case j.SalaryMax != nil:
			salaries = append(salaries, *j.SalaryMax)
		}
	}
	snap.UniqueEmployers = len(employers)

	snap.TopSkills = rankSkills(skills, topSkillsLimit)
	snap.TopEmployers = rankEmployers(employers, topEmployersLimit)

	reportSkills := make(map[string]int)
	for _, r := range reports {
		for _, s := range r.Skills {
			reportSkills[s]++
		}
	}
	if len(reportSkills) > 0 {
		snap.ReportSkills = rankSkills(reportSkills, topSkillsLimit)
	}

	if len(salaries) > 0 {
		snap.Salary = salaryStats(salaries)
	}
	return snap
}

// WriteSummary writes the snapshot as indented JSON via temp-file rename.
func WriteSummary(snap model.AnalysisSnapshot, path string) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal summary")
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "export: create output dir")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "export: write summary")
	}
	return eris.Wrap(os.Rename(tmp, path), "export: finalize summary")
}

func rankSkills(counts map[string]int, limit int) []model.SkillCount {
	ranked := make([]model.SkillCount, 0, len(counts))
	for skill, count := range counts {
		ranked = append(ranked, model.SkillCount{Skill: skill, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Skill < ranked[j].Skill
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func rankEmployers(counts map[string]int, limit int) []model.EmployerCount {
	ranked := make([]model.EmployerCount, 0, len(counts))
	for employer, count := range counts {
		ranked = append(ranked, model.EmployerCount{Employer: employer, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Employer < ranked[j].Employer
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func salaryStats(samples []float64) *model.SalaryStats {
	stats := &model.SalaryStats{
		SampleSize: len(samples),
		MinAnnual:  math.Inf(1),
		MaxAnnual:  math.Inf(-1),
	}
	var sum float64
	for _, s := range samples {
		stats.MinAnnual = math.Min(stats.MinAnnual, s)
		stats.MaxAnnual = math.Max(stats.MaxAnnual, s)
		sum += s
	}
	stats.MeanAnnual = math.Round(sum/float64(len(samples))*100) / 100
	return stats
}
