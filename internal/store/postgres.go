package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/charm-heritage/market-cli/internal/db"
	"github.com/charm-heritage/market-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"seen_identities": `SELECT job_url, fingerprint FROM jobs`,
	"insert_run":      `INSERT INTO runs (id, status, started_at) VALUES ($1, $2, $3)`,
	"finish_run": `UPDATE runs SET status = $1, jobs_seen = $2, jobs_new = $3, duplicates = $4,
		reports = $5, finished_at = $6, error = $7 WHERE id = $8`,
	"insert_report": `INSERT INTO reports (name, content_hash, word_count, skills, top_entities, report_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (name, content_hash) DO NOTHING`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	job_key       TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	title         TEXT NOT NULL,
	company       TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL DEFAULT '',
	city          TEXT,
	state         TEXT,
	lat           DOUBLE PRECISION,
	lon           DOUBLE PRECISION,
	date_posted   TIMESTAMPTZ,
	job_type      TEXT NOT NULL DEFAULT 'unknown',
	seniority     TEXT NOT NULL DEFAULT 'unknown',
	salary_min    DOUBLE PRECISION,
	salary_max    DOUBLE PRECISION,
	currency      TEXT,
	job_url       TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	sentiment     DOUBLE PRECISION NOT NULL DEFAULT 0,
	fingerprint   TEXT NOT NULL,
	first_seen_at TIMESTAMPTZ NOT NULL,
	last_seen_at  TIMESTAMPTZ NOT NULL
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
	skills       JSONB NOT NULL DEFAULT '[]',
	top_entities JSONB NOT NULL DEFAULT '[]',
	report_text  TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (name, content_hash)
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	jobs_seen   INTEGER NOT NULL DEFAULT 0,
	jobs_new    INTEGER NOT NULL DEFAULT 0,
	duplicates  INTEGER NOT NULL DEFAULT 0,
	reports     INTEGER NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_jobs_fingerprint ON jobs(fingerprint);
CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company);
CREATE INDEX IF NOT EXISTS idx_job_skills_skill ON job_skills(skill);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// jobColumns is the COPY column order for the jobs bulk upsert.
var jobColumns = []string{
	"job_key", "source", "title", "company", "location", "city", "state", "lat", "lon",
	"date_posted", "job_type", "seniority", "salary_min", "salary_max", "currency",
	"job_url", "description", "sentiment", "fingerprint", "first_seen_at", "last_seen_at",
}

// jobUpdateColumns excludes first_seen_at so replays never rewrite the
// original sighting timestamp.
var jobUpdateColumns = []string{
	"source", "title", "company", "location", "city", "state", "lat", "lon",
	"date_posted", "job_type", "seniority", "salary_min", "salary_max", "currency",
	"job_url", "description", "sentiment", "fingerprint", "last_seen_at",
}

func (s *PostgresStore) UpsertJobs(ctx context.Context, jobs []model.JobPosting) (*BatchResult, error) {
	result := &BatchResult{}
	if len(jobs) == 0 {
		return result, nil
	}

	// Last occurrence wins within a batch: ON CONFLICT DO UPDATE cannot touch
	// the same row twice in one statement.
	byKey := make(map[string]model.JobPosting, len(jobs))
	keys := make([]string, 0, len(jobs))
	for _, job := range jobs {
		key := jobKey(job)
		if _, seen := byKey[key]; !seen {
			keys = append(keys, key)
		}
		byKey[key] = job
	}

	var existing int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM jobs WHERE job_key = ANY($1)`, keys,
	).Scan(&existing)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count existing jobs")
	}
	result.Updated = existing
	result.Inserted = len(keys) - existing

	rows := make([][]any, 0, len(keys))
	skillRows := make([][]any, 0)
	for _, key := range keys {
		job := byKey[key]
		rows = append(rows, []any{
			key, job.Source, job.Title, job.Company, job.Location, job.City, job.State, job.Lat, job.Lon,
			job.DatePosted, string(job.JobType), string(job.Seniority),
			job.SalaryMin, job.SalaryMax, job.Currency,
			job.URL, job.Description, job.Sentiment, job.Fingerprint,
			job.FirstSeenAt.UTC(), job.LastSeenAt.UTC(),
		})
		for _, skill := range job.Skills {
			skillRows = append(skillRows, []any{key, skill})
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin upsert jobs")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = db.BulkUpsert(ctx, tx, db.UpsertConfig{
		Table:        "jobs",
		Columns:      jobColumns,
		ConflictKeys: []string{"job_key"},
		UpdateCols:   jobUpdateColumns,
	}, rows)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM job_skills WHERE job_key = ANY($1)`, keys); err != nil {
		return nil, eris.Wrap(err, "postgres: clear job skills")
	}
	if len(skillRows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"job_skills"}, []string{"job_key", "skill"}, pgx.CopyFromRows(skillRows)); err != nil {
			return nil, eris.Wrap(err, "postgres: copy job skills")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit upsert jobs")
	}
	return result, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context) ([]model.JobPosting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT j.source, j.title, j.company, j.location, j.city, j.state, j.lat, j.lon,
			j.date_posted, j.job_type, j.seniority, j.salary_min, j.salary_max, j.currency,
			j.job_url, j.description, j.sentiment, j.fingerprint, j.first_seen_at, j.last_seen_at,
			COALESCE(array_agg(s.skill ORDER BY s.skill) FILTER (WHERE s.skill IS NOT NULL), '{}')
		FROM jobs j
		LEFT JOIN job_skills s ON s.job_key = j.job_key
		GROUP BY j.job_key
		ORDER BY j.first_seen_at, j.job_key`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.JobPosting
	for rows.Next() {
		var j model.JobPosting
		var jobType, seniority string
		err := rows.Scan(&j.Source, &j.Title, &j.Company, &j.Location, &j.City, &j.State, &j.Lat, &j.Lon,
			&j.DatePosted, &jobType, &seniority, &j.SalaryMin, &j.SalaryMax, &j.Currency,
			&j.URL, &j.Description, &j.Sentiment, &j.Fingerprint, &j.FirstSeenAt, &j.LastSeenAt,
			&j.Skills)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		j.JobType = model.JobType(jobType)
		j.Seniority = model.Seniority(seniority)
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) SeenIdentities(ctx context.Context) (*Identities, error) {
	rows, err := s.pool.Query(ctx, `SELECT job_url, fingerprint FROM jobs`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: seen identities")
	}
	defer rows.Close()

	ids := &Identities{}
	for rows.Next() {
		var url, fp string
		if err := rows.Scan(&url, &fp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan identity")
		}
		if url != "" {
			ids.URLs = append(ids.URLs, url)
		}
		if fp != "" {
			ids.Fingerprints = append(ids.Fingerprints, fp)
		}
	}
	return ids, eris.Wrap(rows.Err(), "postgres: identities iterate")
}

func (s *PostgresStore) UpsertReports(ctx context.Context, reports []model.Report) (int, error) {
	if len(reports) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin upsert reports")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	inserted := 0
	for _, r := range reports {
		tag, err := tx.Exec(ctx, `
			INSERT INTO reports (name, content_hash, word_count, skills, top_entities, report_text, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (name, content_hash) DO NOTHING`,
			r.Name, r.ContentHash, r.WordCount, nonNil(r.Skills), nonNil(r.TopEntities), r.Text, r.CreatedAt.UTC(),
		)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: insert report %s", r.Name)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit upsert reports")
	}
	return inserted, nil
}

func (s *PostgresStore) ListReports(ctx context.Context) ([]model.Report, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, content_hash, word_count, skills, top_entities, report_text, created_at
		FROM reports ORDER BY name, created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		var r model.Report
		if err := rows.Scan(&r.Name, &r.ContentHash, &r.WordCount, &r.Skills, &r.TopEntities, &r.Text, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: list reports iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context) (*model.RunRecord, error) {
	run := &model.RunRecord{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES ($1, $2, $3)`,
		run.ID, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.RunRecord) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE runs SET status = $1, jobs_seen = $2, jobs_new = $3, duplicates = $4,
			reports = $5, finished_at = $6, error = $7
		WHERE id = $8`,
		string(run.Status), run.JobsSeen, run.JobsNew, run.Duplicates,
		run.Reports, run.FinishedAt, run.Error, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, status, jobs_seen, jobs_new, duplicates, reports, started_at, finished_at, error
		FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var r model.RunRecord
		var status string
		if err := rows.Scan(&r.ID, &status, &r.JobsSeen, &r.JobsNew, &r.Duplicates, &r.Reports, &r.StartedAt, &r.FinishedAt, &r.Error); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
