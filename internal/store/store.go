// Package store persists postings, reports, and the run ledger, with SQLite
// and Postgres backends behind one interface.
package store

import (
	"context"

	"github.com/charm-heritage/market-cli/internal/model"
)

// BatchResult reports the outcome of one upsert batch.
type BatchResult struct {
	Inserted int
	Updated  int
}

// Identities is the seen history used to seed deduplication across runs.
type Identities struct {
	URLs         []string
	Fingerprints []string
}

// Store defines persistence for the ingestion pipeline. UpsertJobs and
// UpsertReports are idempotent: replaying a batch updates last-seen
// bookkeeping without creating duplicate rows.
type Store interface {
	// Jobs
	UpsertJobs(ctx context.Context, jobs []model.JobPosting) (*BatchResult, error)
	ListJobs(ctx context.Context) ([]model.JobPosting, error)
	SeenIdentities(ctx context.Context) (*Identities, error)

	// Reports
	UpsertReports(ctx context.Context, reports []model.Report) (int, error)
	ListReports(ctx context.Context) ([]model.Report, error)

	// Run ledger
	CreateRun(ctx context.Context) (*model.RunRecord, error)
	FinishRun(ctx context.Context, run *model.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// jobKey is the conflict key for the jobs table: the canonical URL when the
// posting has one, otherwise the content fingerprint. Postings scraped from
// listing-only sources can lack a detail URL but still need a stable identity.
func jobKey(j model.JobPosting) string {
	if j.URL != "" {
		return j.URL
	}
	return "fp:" + j.Fingerprint
}
