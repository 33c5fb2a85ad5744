package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charm-heritage/market-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "market.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func sampleJob(url string) model.JobPosting {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return model.JobPosting{
		Source:      "shovelbums",
		Title:       "Field Archaeologist",
		Company:     "Plateau CRM",
		Location:    "Bend, OR",
		City:        ptr("Bend"),
		State:       ptr("OR"),
		JobType:     model.JobTypeFullTime,
		Seniority:   model.SeniorityMid,
		Skills:      []string{"ArcGIS Pro", "Section 106"},
		SalaryMin:   ptr(52000.0),
		SalaryMax:   ptr(61000.0),
		Currency:    ptr("USD"),
		URL:         url,
		Description: "Phase I and II survey work across the high desert.",
		Fingerprint: "fp-" + url,
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
}

func TestSQLiteUpsertJobsInsertThenUpdate(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	job := sampleJob("https://example.com/jobs/1")
	res, err := s.UpsertJobs(ctx, []model.JobPosting{job})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 0, res.Updated)

	// Replay with a later sighting: no new row, last_seen moves, first_seen
	// stays put.
	later := job
	later.LastSeenAt = job.LastSeenAt.Add(24 * time.Hour)
	res, err = s.UpsertJobs(ctx, []model.JobPosting{later})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 1, res.Updated)

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.FirstSeenAt, jobs[0].FirstSeenAt)
	assert.Equal(t, later.LastSeenAt, jobs[0].LastSeenAt)
	assert.Equal(t, []string{"ArcGIS Pro", "Section 106"}, jobs[0].Skills)
	require.NotNil(t, jobs[0].SalaryMin)
	assert.Equal(t, 52000.0, *jobs[0].SalaryMin)
}

func TestSQLiteUpsertJobsNullFieldsStayNull(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	job := sampleJob("https://example.com/jobs/bare")
	job.City = nil
	job.State = nil
	job.SalaryMin = nil
	job.SalaryMax = nil
	job.Currency = nil
	job.DatePosted = nil
	job.Skills = nil

	_, err := s.UpsertJobs(ctx, []model.JobPosting{job})
	require.NoError(t, err)

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Nil(t, jobs[0].City)
	assert.Nil(t, jobs[0].SalaryMin)
	assert.Nil(t, jobs[0].DatePosted)
	assert.Empty(t, jobs[0].Skills)
}

func TestSQLiteUpsertJobsNoURLKeyedByFingerprint(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	job := sampleJob("")
	job.Fingerprint = "abc123"

	res, err := s.UpsertJobs(ctx, []model.JobPosting{job})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	res, err = s.UpsertJobs(ctx, []model.JobPosting{job})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestSQLiteSkillsReplacedOnUpdate(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	job := sampleJob("https://example.com/jobs/2")
	_, err := s.UpsertJobs(ctx, []model.JobPosting{job})
	require.NoError(t, err)

	job.Skills = []string{"GIS", "NAGPRA"}
	_, err = s.UpsertJobs(ctx, []model.JobPosting{job})
	require.NoError(t, err)

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, []string{"GIS", "NAGPRA"}, jobs[0].Skills)
}

func TestSQLiteSeenIdentities(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	withURL := sampleJob("https://example.com/jobs/3")
	noURL := sampleJob("")
	noURL.Fingerprint = "lonefp"

	_, err := s.UpsertJobs(ctx, []model.JobPosting{withURL, noURL})
	require.NoError(t, err)

	ids, err := s.SeenIdentities(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://example.com/jobs/3"}, ids.URLs)
	assert.ElementsMatch(t, []string{"fp-https://example.com/jobs/3", "lonefp"}, ids.Fingerprints)
}

func TestSQLiteUpsertReports(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	report := model.Report{
		Name:        "regional-survey-2026.pdf",
		ContentHash: "hash1",
		WordCount:   1200,
		Skills:      []string{"LiDAR"},
		TopEntities: []string{"Bureau of Land Management"},
		Text:        "full report text",
		CreatedAt:   time.Now().UTC(),
	}

	n, err := s.UpsertReports(ctx, []model.Report{report})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Same name and hash: a replay, not a new version.
	n, err = s.UpsertReports(ctx, []model.Report{report})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Same name, new hash: a revised document is a new row.
	revised := report
	revised.ContentHash = "hash2"
	n, err = s.UpsertReports(ctx, []model.Report{revised})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reports, err := s.ListReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, []string{"LiDAR"}, reports[0].Skills)
}

func TestSQLiteRunLedger(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	run.Status = model.RunStatusComplete
	run.JobsSeen = 40
	run.JobsNew = 12
	run.Duplicates = 28
	run.Reports = 2
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	require.NoError(t, s.FinishRun(ctx, run))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, 12, runs[0].JobsNew)
	require.NotNil(t, runs[0].FinishedAt)
}

func TestSQLiteFinishRunUnknownID(t *testing.T) {
	s := newTestSQLite(t)
	err := s.FinishRun(context.Background(), &model.RunRecord{ID: "missing", Status: model.RunStatusFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteEmptyBatches(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	res, err := s.UpsertJobs(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)

	n, err := s.UpsertReports(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
