package model

import "time"

// JobType buckets a posting's employment arrangement.
type JobType string

const (
	JobTypeFullTime   JobType = "full_time"
	JobTypePartTime   JobType = "part_time"
	JobTypeContract   JobType = "contract"
	JobTypeTemporary  JobType = "temporary"
	JobTypeSeasonal   JobType = "seasonal"
	JobTypeInternship JobType = "internship"
	JobTypeUnknown    JobType = "unknown"
)

// Seniority buckets a posting's experience level.
type Seniority string

const (
	SeniorityEntry     Seniority = "entry"
	SeniorityMid       Seniority = "mid"
	SenioritySenior    Seniority = "senior"
	SeniorityPrincipal Seniority = "principal"
	SeniorityUnknown   Seniority = "unknown"
)

// RawPosting is a listing-page hit before any cleaning. Description is
// populated by the detail fetch and may be empty when that fetch failed.
type RawPosting struct {
	Source      string `json:"source"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	DatePosted  string `json:"date_posted"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// JobPosting is a cleaned, enriched posting ready for persistence.
// Nullable numeric fields are pointers so absence survives into the store as
// true NULL rather than zero.
type JobPosting struct {
	Source      string     `json:"source"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location"`
	City        *string    `json:"city,omitempty"`
	State       *string    `json:"state,omitempty"`
	Lat         *float64   `json:"lat,omitempty"`
	Lon         *float64   `json:"lon,omitempty"`
	DatePosted  *time.Time `json:"date_posted,omitempty"`
	JobType     JobType    `json:"job_type"`
	Seniority   Seniority  `json:"seniority"`
	Skills      []string   `json:"skills"`
	SalaryMin   *float64   `json:"salary_min,omitempty"`
	SalaryMax   *float64   `json:"salary_max,omitempty"`
	Currency    *string    `json:"currency,omitempty"`
	URL         string     `json:"url"` // canonical
	Description string     `json:"description"`
	Sentiment   float64    `json:"sentiment"`
	Fingerprint string     `json:"fingerprint"`
	FirstSeenAt time.Time  `json:"first_seen_at"`
	LastSeenAt  time.Time  `json:"last_seen_at"`
}

// Report is an extracted and enriched industry report.
type Report struct {
	Name        string    `json:"name"`
	ContentHash string    `json:"content_hash"`
	WordCount   int       `json:"word_count"`
	Skills      []string  `json:"skills"`
	TopEntities []string  `json:"top_entities"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// SkillCount is one entry in a ranked skill tally.
type SkillCount struct {
	Skill string `json:"skill"`
	Count int    `json:"count"`
}

// EmployerCount is one entry in a ranked employer tally.
type EmployerCount struct {
	Employer string `json:"employer"`
	Count    int    `json:"count"`
}

// SalaryStats aggregates salary bounds over postings that carry them.
// NULL salaries are excluded, never counted as zero.
type SalaryStats struct {
	SampleSize int     `json:"sample_size"`
	MinAnnual  float64 `json:"min_annual"`
	MaxAnnual  float64 `json:"max_annual"`
	MeanAnnual float64 `json:"mean_annual"`
}

// AnalysisSnapshot summarizes the persisted record set for one run. It is
// recomputed wholesale each run, never patched incrementally.
type AnalysisSnapshot struct {
	RunAt           time.Time       `json:"run_at"`
	NumJobs         int             `json:"num_jobs"`
	UniqueEmployers int             `json:"unique_employers"`
	Geocoded        int             `json:"geocoded"`
	TopSkills       []SkillCount    `json:"top_skills"`
	TopEmployers    []EmployerCount `json:"top_employers"`
	ReportSkills    []SkillCount    `json:"report_skills,omitempty"`
	Salary          *SalaryStats    `json:"salary,omitempty"`
}

// RunStatus represents the state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunRecord is one row in the runs ledger.
type RunRecord struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	JobsSeen   int        `json:"jobs_seen"`
	JobsNew    int        `json:"jobs_new"`
	Duplicates int        `json:"duplicates"`
	Reports    int        `json:"reports"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}
