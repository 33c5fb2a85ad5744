package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/charm-heritage/market-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// Parent directories are created as needed.
func NewSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "sqlite: create data dir")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	job_key       TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	title         TEXT NOT NULL,
	company       TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL DEFAULT '',
	city          TEXT,
	state         TEXT,
	lat           REAL,
	lon           REAL,
	date_posted   DATETIME,
	job_type      TEXT NOT NULL DEFAULT 'unknown',
	seniority     TEXT NOT NULL DEFAULT 'unknown',
	salary_min    REAL,
	salary_max    REAL,
	currency      TEXT,
	job_url       TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	sentiment     REAL NOT NULL DEFAULT 0,
	fingerprint   TEXT NOT NULL,
	first_seen_at DATETIME NOT NULL,
	last_seen_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS job_skills (
	job_key TEXT NOT NULL REFERENCES jobs(job_key) ON DELETE CASCADE,
	skill   TEXT NOT NULL,
	PRIMARY KEY (job_key, skill)
);

CREATE TABLE IF NOT EXISTS reports (
	name         TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	word_count   INTEGER NOT NULL DEFAULT 0,
	skills       TEXT NOT NULL DEFAULT '[]',
	top_entities TEXT NOT NULL DEFAULT '[]',
	report_text  TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	PRIMARY KEY (name, content_hash)
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	jobs_seen   INTEGER NOT NULL DEFAULT 0,
	jobs_new    INTEGER NOT NULL DEFAULT 0,
	duplicates  INTEGER NOT NULL DEFAULT 0,
	reports     INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_jobs_fingerprint ON jobs(fingerprint);
CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company);
CREATE INDEX IF NOT EXISTS idx_job_skills_skill ON job_skills(skill);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertJobs(ctx context.Context, jobs []model.JobPosting) (*BatchResult, error) {
	result := &BatchResult{}
	if len(jobs) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin upsert jobs")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, job := range jobs {
		key := jobKey(job)

		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM jobs WHERE job_key = ?`, key).Scan(&exists)
		switch {
		case err == sql.ErrNoRows:
			_, err = tx.ExecContext(ctx, `
				INSERT INTO jobs (job_key, source, title, company, location, city, state, lat, lon,
					date_posted, job_type, seniority, salary_min, salary_max, currency,
					job_url, description, sentiment, fingerprint, first_seen_at, last_seen_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				key, job.Source, job.Title, job.Company, job.Location, job.City, job.State, job.Lat, job.Lon,
				timePtr(job.DatePosted), string(job.JobType), string(job.Seniority),
				job.SalaryMin, job.SalaryMax, job.Currency,
				job.URL, job.Description, job.Sentiment, job.Fingerprint,
				job.FirstSeenAt.UTC(), job.LastSeenAt.UTC(),
			)
			if err != nil {
				return nil, eris.Wrapf(err, "sqlite: insert job %s", key)
			}
			result.Inserted++
		case err != nil:
			return nil, eris.Wrapf(err, "sqlite: check job %s", key)
		default:
			// Known posting: refresh everything mutable, preserve first_seen_at.
			_, err = tx.ExecContext(ctx, `
				UPDATE jobs SET source = ?, title = ?, company = ?, location = ?, city = ?, state = ?,
					lat = ?, lon = ?, date_posted = ?, job_type = ?, seniority = ?,
					salary_min = ?, salary_max = ?, currency = ?, job_url = ?, description = ?,
					sentiment = ?, fingerprint = ?, last_seen_at = ?
				WHERE job_key = ?`,
				job.Source, job.Title, job.Company, job.Location, job.City, job.State,
				job.Lat, job.Lon, timePtr(job.DatePosted), string(job.JobType), string(job.Seniority),
				job.SalaryMin, job.SalaryMax, job.Currency, job.URL, job.Description,
				job.Sentiment, job.Fingerprint, job.LastSeenAt.UTC(),
				key,
			)
			if err != nil {
				return nil, eris.Wrapf(err, "sqlite: update job %s", key)
			}
			result.Updated++
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM job_skills WHERE job_key = ?`, key); err != nil {
			return nil, eris.Wrapf(err, "sqlite: clear skills for %s", key)
		}
		for _, skill := range job.Skills {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO job_skills (job_key, skill) VALUES (?, ?)`, key, skill,
			); err != nil {
				return nil, eris.Wrapf(err, "sqlite: insert skill for %s", key)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit upsert jobs")
	}
	return result, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context) ([]model.JobPosting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_key, source, title, company, location, city, state, lat, lon,
			date_posted, job_type, seniority, salary_min, salary_max, currency,
			job_url, description, sentiment, fingerprint, first_seen_at, last_seen_at
		FROM jobs ORDER BY first_seen_at, job_key`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close() //nolint:errcheck

	var jobs []model.JobPosting
	keys := make([]string, 0)
	for rows.Next() {
		var j model.JobPosting
		var key, jobType, seniority string
		var datePosted, firstSeen, lastSeen sql.NullTime

		err := rows.Scan(&key, &j.Source, &j.Title, &j.Company, &j.Location, &j.City, &j.State,
			&j.Lat, &j.Lon, &datePosted, &jobType, &seniority,
			&j.SalaryMin, &j.SalaryMax, &j.Currency,
			&j.URL, &j.Description, &j.Sentiment, &j.Fingerprint, &firstSeen, &lastSeen)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		j.JobType = model.JobType(jobType)
		j.Seniority = model.Seniority(seniority)
		if datePosted.Valid {
			t := datePosted.Time.UTC()
			j.DatePosted = &t
		}
		if firstSeen.Valid {
			j.FirstSeenAt = firstSeen.Time.UTC()
		}
		if lastSeen.Valid {
			j.LastSeenAt = lastSeen.Time.UTC()
		}
		jobs = append(jobs, j)
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs iterate")
	}

	for i, key := range keys {
		skills, err := s.jobSkills(ctx, key)
		if err != nil {
			return nil, err
		}
		jobs[i].Skills = skills
	}
	return jobs, nil
}

func (s *SQLiteStore) jobSkills(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT skill FROM job_skills WHERE job_key = ? ORDER BY skill`, key)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: skills for %s", key)
	}
	defer rows.Close() //nolint:errcheck

	var skills []string
	for rows.Next() {
		var skill string
		if err := rows.Scan(&skill); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan skill")
		}
		skills = append(skills, skill)
	}
	return skills, eris.Wrap(rows.Err(), "sqlite: skills iterate")
}

func (s *SQLiteStore) SeenIdentities(ctx context.Context) (*Identities, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT job_url, fingerprint FROM jobs`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: seen identities")
	}
	defer rows.Close() //nolint:errcheck

	ids := &Identities{}
	for rows.Next() {
		var url, fp string
		if err := rows.Scan(&url, &fp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan identity")
		}
		if url != "" {
			ids.URLs = append(ids.URLs, url)
		}
		if fp != "" {
			ids.Fingerprints = append(ids.Fingerprints, fp)
		}
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: identities iterate")
}

func (s *SQLiteStore) UpsertReports(ctx context.Context, reports []model.Report) (int, error) {
	if len(reports) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert reports")
	}
	defer tx.Rollback() //nolint:errcheck

	inserted := 0
	for _, r := range reports {
		skillsJSON, err := json.Marshal(nonNil(r.Skills))
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal report skills")
		}
		entitiesJSON, err := json.Marshal(nonNil(r.TopEntities))
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal report entities")
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO reports (name, content_hash, word_count, skills, top_entities, report_text, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (name, content_hash) DO NOTHING`,
			r.Name, r.ContentHash, r.WordCount, string(skillsJSON), string(entitiesJSON), r.Text, r.CreatedAt.UTC(),
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert report %s", r.Name)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert reports")
	}
	return inserted, nil
}

func (s *SQLiteStore) ListReports(ctx context.Context) ([]model.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, content_hash, word_count, skills, top_entities, report_text, created_at
		FROM reports ORDER BY name, created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close() //nolint:errcheck

	var reports []model.Report
	for rows.Next() {
		var r model.Report
		var skillsJSON, entitiesJSON string
		if err := rows.Scan(&r.Name, &r.ContentHash, &r.WordCount, &skillsJSON, &entitiesJSON, &r.Text, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		if err := json.Unmarshal([]byte(skillsJSON), &r.Skills); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report skills")
		}
		if err := json.Unmarshal([]byte(entitiesJSON), &r.TopEntities); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report entities")
		}
		r.CreatedAt = r.CreatedAt.UTC()
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: list reports iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*model.RunRecord, error) {
	run := &model.RunRecord{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
		run.ID, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.RunRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, jobs_seen = ?, jobs_new = ?, duplicates = ?,
			reports = ?, finished_at = ?, error = ?
		WHERE id = ?`,
		string(run.Status), run.JobsSeen, run.JobsNew, run.Duplicates,
		run.Reports, timePtr(run.FinishedAt), run.Error, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run not found: %s", run.ID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, jobs_seen, jobs_new, duplicates, reports, started_at, finished_at, error
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.RunRecord
	for rows.Next() {
		var r model.RunRecord
		var status string
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &status, &r.JobsSeen, &r.JobsNew, &r.Duplicates, &r.Reports, &r.StartedAt, &finished, &r.Error); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = model.RunStatus(status)
		r.StartedAt = r.StartedAt.UTC()
		if finished.Valid {
			t := finished.Time.UTC()
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
