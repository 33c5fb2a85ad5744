// Package pipeline orchestrates a full ingestion run: listing traversal,
// detail fetching, report extraction, normalization, enrichment, geocoding,
// persistence, and artifact regeneration.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/charm-heritage/market-cli/internal/cache"
	"github.com/charm-heritage/market-cli/internal/config"
	"github.com/charm-heritage/market-cli/internal/enrich"
	"github.com/charm-heritage/market-cli/internal/export"
	"github.com/charm-heritage/market-cli/internal/extract"
	"github.com/charm-heritage/market-cli/internal/fetcher"
	"github.com/charm-heritage/market-cli/internal/model"
	"github.com/charm-heritage/market-cli/internal/normalize"
	"github.com/charm-heritage/market-cli/internal/store"
	"github.com/charm-heritage/market-cli/pkg/geocode"
)

// Pipeline wires the run's dependencies. Store and geocoder are optional:
// with no store the run still produces exports from this run's records, and
// with no geocoder coordinates stay null.
type Pipeline struct {
	cfg      *config.Config
	cache    *cache.Store
	store    store.Store
	geocoder geocode.Client
	taxonomy *enrich.Taxonomy

	recognizer enrich.Recognizer
	inbox      *extract.FTPInbox
	extractor  extract.TextExtractor
	now        func() time.Time
}

// New creates a Pipeline. st and geo may be nil when those features are
// disabled in configuration.
func New(cfg *config.Config, cacheStore *cache.Store, st store.Store, geo geocode.Client, taxonomy *enrich.Taxonomy) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		cache:      cacheStore,
		store:      st,
		geocoder:   geo,
		taxonomy:   taxonomy,
		recognizer: enrich.NewPatternRecognizer(),
		extractor:  extract.NewPdfToText(cfg.Reports.PdfToTextPath),
		now:        time.Now,
	}
	if cfg.Reports.FTPInboxURL != "" {
		p.inbox = extract.NewFTPInbox(cfg.Reports.FTPInboxURL, cfg.Reports.FTPUser, cfg.Reports.FTPPassword)
	}
	return p
}

// Result summarizes a completed run.
type Result struct {
	Run             model.RunRecord
	Snapshot        model.AnalysisSnapshot
	DetailCacheHits int
}

// Run executes one full ingestion run. Fetch, parse, enrichment, and geocode
// failures degrade per record; store write failure is fatal for the run and
// leaves the previous run's artifacts untouched.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	log := zap.L()
	run := &model.RunRecord{Status: model.RunStatusRunning, StartedAt: p.now().UTC()}
	if p.store != nil {
		created, err := p.store.CreateRun(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		run = created
	}
	log.Info("pipeline: run started", zap.String("run_id", run.ID))

	raws, cacheHits := p.fetchPostings(ctx)
	run.JobsSeen = len(raws)

	postings, dropped := p.normalizePostings(raws)
	run.Duplicates = dropped

	jobsNew, err := p.countNew(ctx, postings)
	if err != nil {
		return nil, p.failRun(ctx, run, err)
	}
	run.JobsNew = jobsNew

	p.enrichPostings(postings)
	p.geocodePostings(ctx, postings)

	reports, err := p.ingestReports(ctx)
	if err != nil {
		return nil, p.failRun(ctx, run, err)
	}
	run.Reports = len(reports)

	allJobs, allReports := postings, reports
	if p.store != nil {
		if _, err := p.store.UpsertJobs(ctx, postings); err != nil {
			return nil, p.failRun(ctx, run, eris.Wrap(err, "pipeline: persist jobs"))
		}
		if _, err := p.store.UpsertReports(ctx, reports); err != nil {
			return nil, p.failRun(ctx, run, eris.Wrap(err, "pipeline: persist reports"))
		}
		// Artifacts regenerate from full store state, not just this run's
		// batch, so they self-heal and reflect history.
		if allJobs, err = p.store.ListJobs(ctx); err != nil {
			return nil, p.failRun(ctx, run, err)
		}
		if allReports, err = p.store.ListReports(ctx); err != nil {
			return nil, p.failRun(ctx, run, err)
		}
	}

	snap := export.BuildSnapshot(allJobs, allReports, p.now())
	if err := p.writeArtifacts(allJobs, allReports, snap); err != nil {
		return nil, p.failRun(ctx, run, err)
	}

	finished := p.now().UTC()
	run.Status = model.RunStatusComplete
	run.FinishedAt = &finished
	if p.store != nil {
		if err := p.store.FinishRun(ctx, run); err != nil {
			return nil, eris.Wrap(err, "pipeline: finish run")
		}
	}

	log.Info("pipeline: run complete",
		zap.Int("jobs_seen", run.JobsSeen),
		zap.Int("jobs_new", run.JobsNew),
		zap.Int("duplicates", run.Duplicates),
		zap.Int("reports", run.Reports),
		zap.Int("detail_cache_hits", cacheHits),
	)
	return &Result{Run: *run, Snapshot: snap, DetailCacheHits: cacheHits}, nil
}

// fetchPostings walks every configured source. A source that fails mid-walk
// contributes the pages it produced before failing; the run carries on.
func (p *Pipeline) fetchPostings(ctx context.Context) ([]model.RawPosting, int) {
	ing := p.cfg.Ingest
	client := fetcher.NewClient(fetcher.ClientOptions{
		UserAgent:   ing.UserAgent,
		Timeout:     time.Duration(ing.TimeoutSecs) * time.Second,
		MaxRetries:  ing.MaxRetries,
		MinInterval: time.Duration(ing.MinIntervalMS) * time.Millisecond,
	})

	var all []model.RawPosting
	totalHits := 0
	for _, src := range ing.Sources {
		log := zap.L().With(zap.String("source", src.Name))

		var raws []model.RawPosting
		pages, errs := fetcher.NewPaginator(client, src, ing.MaxPages).Pages(ctx)
		for page := range pages {
			raws = append(raws, page.Postings...)
		}
		if err := <-errs; err != nil {
			log.Warn("pipeline: source traversal ended early", zap.Error(err))
		}
		log.Info("pipeline: listings fetched", zap.Int("postings", len(raws)))

		detail := fetcher.NewDetailFetcher(client, p.cache, ing.DetailWorkers, ing.MaxDescChars)
		hits, err := detail.FetchAll(ctx, raws, src.DescSelector)
		if err != nil {
			log.Warn("pipeline: detail fetch interrupted", zap.Error(err))
		}
		totalHits += hits
		all = append(all, raws...)
	}
	return all, totalHits
}

// normalizePostings cleans and deduplicates raw postings within the run.
// Cross-run collapse happens at the store's upsert keys, so known postings
// still flow through here and get their last-seen advanced.
func (p *Pipeline) normalizePostings(raws []model.RawPosting) ([]model.JobPosting, int) {
	deduper := normalize.NewDeduper(nil, nil)

	now := p.now()
	var postings []model.JobPosting
	for _, raw := range raws {
		posting := normalize.Posting(raw, deduper, now)
		if posting == nil {
			continue
		}
		postings = append(postings, *posting)
	}
	return postings, deduper.Dropped()
}

// countNew checks this batch against the store's seen identities to report
// how many postings are first sightings.
func (p *Pipeline) countNew(ctx context.Context, postings []model.JobPosting) (int, error) {
	if p.store == nil {
		return len(postings), nil
	}
	ids, err := p.store.SeenIdentities(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: load seen identities")
	}
	seen := make(map[string]bool, len(ids.URLs)+len(ids.Fingerprints))
	for _, u := range ids.URLs {
		seen[u] = true
	}
	for _, fp := range ids.Fingerprints {
		seen[fp] = true
	}

	jobsNew := 0
	for _, posting := range postings {
		if !seen[posting.URL] && !seen[posting.Fingerprint] {
			jobsNew++
		}
	}
	return jobsNew, nil
}

func (p *Pipeline) enrichPostings(postings []model.JobPosting) {
	for i := range postings {
		text := postings[i].Title + "\n" + postings[i].Description
		postings[i].Skills = p.taxonomy.MatchSkills(text)
		postings[i].Sentiment = enrich.Sentiment(postings[i].Description)
	}
}

// geocodePostings resolves coordinates for every posting with any location
// signal: parsed city/state when available, the raw location string otherwise.
// Lookups run sequentially; the geocoder's own rate gate sets the pace.
func (p *Pipeline) geocodePostings(ctx context.Context, postings []model.JobPosting) {
	if p.geocoder == nil {
		return
	}
	for i := range postings {
		q := geocode.Query{City: deref(postings[i].City), State: deref(postings[i].State)}
		if q.City == "" && q.State == "" {
			q.Raw = strings.TrimSpace(postings[i].Location)
			if q.Raw == "" {
				continue
			}
		}
		result, err := p.geocoder.Geocode(ctx, q)
		if err != nil {
			zap.L().Warn("pipeline: geocode failed", zap.String("query", q.String()), zap.Error(err))
			continue
		}
		if result.Matched {
			lat, lon := result.Latitude, result.Longitude
			postings[i].Lat = &lat
			postings[i].Lon = &lon
		}
	}
}

// ingestReports pulls the FTP inbox when configured, then extracts and
// enriches every PDF in the reports directory.
func (p *Pipeline) ingestReports(ctx context.Context) ([]model.Report, error) {
	dir := p.cfg.Reports.Dir
	if dir == "" {
		return nil, nil
	}

	if p.inbox != nil {
		fetched, err := p.inbox.Pull(dir)
		if err != nil {
			zap.L().Warn("pipeline: ftp inbox pull failed", zap.Error(err))
		} else if fetched > 0 {
			zap.L().Info("pipeline: ftp inbox pulled", zap.Int("files", fetched))
		}
	}

	extractor := extract.NewExtractor(p.extractor, p.cache, p.cfg.Reports.Workers)
	docs, err := extractor.ExtractDir(ctx, dir)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: extract reports")
	}

	now := p.now()
	reports := make([]model.Report, 0, len(docs))
	for _, doc := range docs {
		skills := p.taxonomy.MatchSkills(doc.Text)

		// Entity extraction degrades to an empty list, never blocks.
		var top []string
		entities, err := p.recognizer.Recognize(ctx, doc.Text)
		if err != nil {
			zap.L().Warn("pipeline: entity extraction failed", zap.String("report", doc.Name), zap.Error(err))
		} else {
			top = enrich.TopEntities(entities, 10)
		}

		reports = append(reports, doc.Report(skills, top, now))
	}
	return reports, nil
}

// writeArtifacts regenerates every flat export from the full record set.
func (p *Pipeline) writeArtifacts(jobs []model.JobPosting, reports []model.Report, snap model.AnalysisSnapshot) error {
	dir := p.cfg.Export.Dir
	if err := export.WriteJobsCSV(jobs, filepath.Join(dir, "jobs.csv")); err != nil {
		return err
	}
	if err := export.WriteReportsCSV(reports, filepath.Join(dir, "reports.csv")); err != nil {
		return err
	}
	if err := export.WriteSummary(snap, filepath.Join(dir, "analysis.json")); err != nil {
		return err
	}
	if err := export.WriteInsights(snap, filepath.Join(dir, "insights.md")); err != nil {
		return err
	}
	if p.cfg.Sheets.Enabled {
		path := p.cfg.Sheets.Path
		if path == "" {
			path = filepath.Join(dir, "market.xlsx")
		}
		if err := export.WriteWorkbook(jobs, snap, path); err != nil {
			return err
		}
	}
	return nil
}

// failRun records the failure on the run ledger and returns the original
// error.
func (p *Pipeline) failRun(ctx context.Context, run *model.RunRecord, cause error) error {
	run.Status = model.RunStatusFailed
	run.Error = cause.Error()
	finished := p.now().UTC()
	run.FinishedAt = &finished
	if p.store != nil {
		if err := p.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			zap.L().Error("pipeline: failed to record run failure", zap.Error(err))
		}
	}
	return cause
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
