// Package export regenerates the flat artifacts (CSV, JSON summary, XLSX
// workbook, insights markdown) from store state. Every writer rebuilds its
// file wholesale and renames into place, so a crashed run never leaves a
// truncated artifact behind.
package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/charm-heritage/market-cli/internal/model"
)

const skillDelimiter = "; "

// jobColumns defines the ordered jobs CSV output columns.
var jobColumns = []string{
	"source",
	"title",
	"company",
	"location",
	"city",
	"state",
	"lat",
	"lon",
	"date_posted",
	"job_type",
	"seniority",
	"skills",
	"salary_min",
	"salary_max",
	"currency",
	"url",
	"description",
	"sentiment",
}

// reportColumns defines the ordered reports CSV output columns.
var reportColumns = []string{
	"name",
	"word_count",
	"skills",
	"top_entities",
	"text",
}

// WriteJobsCSV writes all postings to path. An empty set still produces a
// header-only file.
func WriteJobsCSV(jobs []model.JobPosting, path string) error {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, buildJobRow(j))
	}
	return writeCSV(path, jobColumns, rows)
}

// WriteReportsCSV writes all reports to path.
func WriteReportsCSV(reports []model.Report, path string) error {
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, []string{
			r.Name,
			strconv.Itoa(r.WordCount),
			strings.Join(r.Skills, skillDelimiter),
			strings.Join(r.TopEntities, skillDelimiter),
			r.Text,
		})
	}
	return writeCSV(path, reportColumns, rows)
}

func buildJobRow(j model.JobPosting) []string {
	return []string{
		j.Source,
		j.Title,
		j.Company,
		j.Location,
		strPtr(j.City),
		strPtr(j.State),
		floatPtr(j.Lat),
		floatPtr(j.Lon),
		datePtr(j.DatePosted),
		string(j.JobType),
		string(j.Seniority),
		strings.Join(j.Skills, skillDelimiter),
		floatPtr(j.SalaryMin),
		floatPtr(j.SalaryMax),
		strPtr(j.Currency),
		j.URL,
		j.Description,
		strconv.FormatFloat(j.Sentiment, 'f', 4, 64),
	}
}

// writeCSV writes header+rows to a temp file in the destination directory,
// then renames over path.
func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "export: create output dir")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "export: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "export: write header")
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			tmp.Close() //nolint:errcheck
			return eris.Wrap(err, "export: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "export: flush")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "export: close temp file")
	}
	return eris.Wrapf(os.Rename(tmp.Name(), path), "export: finalize %s", filepath.Base(path))
}

// cell helpers: nil pointers render as empty cells, never as zero.

func strPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func datePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
