package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charm-heritage/market-cli/internal/model"
)

func ptr[T any](v T) *T { return &v }

func sampleJobs() []model.JobPosting {
	posted := time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)
	return []model.JobPosting{
		{
			Source:      "shovelbums",
			Title:       "Field Archaeologist",
			Company:     "Plateau CRM",
			Location:    "Bend, OR",
			City:        ptr("Bend"),
			State:       ptr("OR"),
			Lat:         ptr(44.0582),
			Lon:         ptr(-121.3153),
			DatePosted:  &posted,
			JobType:     model.JobTypeFullTime,
			Seniority:   model.SeniorityMid,
			Skills:      []string{"ArcGIS Pro", "Section 106"},
			SalaryMin:   ptr(52000.0),
			SalaryMax:   ptr(61000.0),
			Currency:    ptr("USD"),
			URL:         "https://example.com/jobs/1",
			Description: "Phase I survey work.",
			Sentiment:   0.25,
		},
		{
			Source:    "shovelbums",
			Title:     "Lab Technician",
			Company:   "Plateau CRM",
			JobType:   model.JobTypeTemporary,
			Seniority: model.SeniorityEntry,
			URL:       "https://example.com/jobs/2",
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteJobsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.csv")
	require.NoError(t, WriteJobsCSV(sampleJobs(), path))

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, jobColumns, records[0])

	first := records[1]
	assert.Equal(t, "shovelbums", first[0])
	assert.Equal(t, "Field Archaeologist", first[1])
	assert.Equal(t, "Bend", first[4])
	assert.Equal(t, "44.0582", first[6])
	assert.Equal(t, "2026-08-12", first[8])
	assert.Equal(t, "ArcGIS Pro; Section 106", first[11])
	assert.Equal(t, "52000", first[12])
	assert.Equal(t, "USD", first[14])

	// Null fields become empty cells, never zeroes.
	second := records[2]
	assert.Equal(t, "", second[4], "city")
	assert.Equal(t, "", second[6], "lat")
	assert.Equal(t, "", second[12], "salary_min")
}

func TestWriteJobsCSVHeaderOnlyWhenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.csv")
	require.NoError(t, WriteJobsCSV(nil, path))

	records := readCSV(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, jobColumns, records[0])
}

func TestWriteJobsCSVIdempotent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	jobs := sampleJobs()

	require.NoError(t, WriteJobsCSV(jobs, a))
	require.NoError(t, WriteJobsCSV(jobs, b))

	aBytes, err := os.ReadFile(a)
	require.NoError(t, err)
	bBytes, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, aBytes, bBytes)
}

func TestWriteJobsCSVReplacesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.csv")
	require.NoError(t, os.WriteFile(path, []byte("garbage,partial\ntrunc"), 0o644))

	require.NoError(t, WriteJobsCSV(sampleJobs(), path))
	records := readCSV(t, path)
	assert.Equal(t, jobColumns, records[0])
}

func TestWriteReportsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.csv")
	reports := []model.Report{{
		Name:        "survey.pdf",
		WordCount:   420,
		Skills:      []string{"LiDAR", "GIS"},
		TopEntities: []string{"Bureau of Land Management"},
		Text:        "report body",
	}}
	require.NoError(t, WriteReportsCSV(reports, path))

	records := readCSV(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, reportColumns, records[0])
	assert.Equal(t, "survey.pdf", records[1][0])
	assert.Equal(t, "420", records[1][1])
	assert.Equal(t, "LiDAR; GIS", records[1][2])
}

func TestWriteCSVNoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteJobsCSV(sampleJobs(), filepath.Join(dir, "jobs.csv")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp"), "stray temp file %s", e.Name())
	}
}
