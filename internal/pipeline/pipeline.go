// Package pipeline runs the cleaning stages over a rasterized
// document: blank removal, report splitting, duplicate removal.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/scancleaner/internal/analyzer"
	"github.com/local/scancleaner/internal/config"
	"github.com/local/scancleaner/internal/dedup"
	"github.com/local/scancleaner/internal/fingerprint"
	"github.com/local/scancleaner/internal/metrics"
	"github.com/local/scancleaner/internal/ocr"
	"github.com/local/scancleaner/internal/page"
	"github.com/local/scancleaner/internal/splitter"
)

// Page statuses recorded in the run metadata.
const (
	StatusKept      = "kept"
	StatusBlank     = "blank"
	StatusSkipped   = "skipped"
	StatusDuplicate = "duplicate"
)

// Stage names for duration metrics.
const (
	StageAnalyze = "analyze"
	StageSplit   = "split"
	StageDedup   = "dedup"
)

// PageRecord is the per-page audit entry. Index is always the page's
// position in the original document.
type PageRecord struct {
	Index  int             `json:"index"`
	Status string          `json:"status"`
	Reason string          `json:"reason,omitempty"`
	Votes  *analyzer.Votes `json:"votes,omitempty"`
	Dedup  *dedup.Decision `json:"dedup,omitempty"`
}

// ReportRecord describes one detected report group and its dedup
// outcome.
type ReportRecord struct {
	Index       int            `json:"index"`
	PageIndices []int          `json:"page_indices"`
	Dedup       dedup.Decision `json:"dedup"`
}

// Stats summarizes a run.
type Stats struct {
	TotalPages   int `json:"total_pages"`
	KeptPages    int `json:"kept_pages"`
	BlankPages   int `json:"blank_pages"`
	SkippedPages int `json:"skipped_pages"`
	Reports      int `json:"reports"`
	Duplicates   int `json:"duplicates"`
}

// Result is the full outcome of one cleaning run. Kept carries the
// surviving groups with their images and is not serialized.
type Result struct {
	Pages   []PageRecord       `json:"pages"`
	Reports []ReportRecord     `json:"reports"`
	Stats   Stats              `json:"stats"`
	Kept    []page.ReportGroup `json:"-"`
}

// Run executes the stages in order. Configuration problems fail fast;
// individual bad pages are recorded as skipped and never abort the
// run. Empty input yields an empty Result.
func Run(ctx context.Context, pages []page.Page, cfg config.Config, engine ocr.Engine) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res := &Result{Stats: Stats{TotalPages: len(pages)}}
	if len(pages) == 0 {
		return res, nil
	}

	kept, err := analyzeStage(ctx, pages, cfg, res)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	det := splitter.New(cfg.Split, engine, cfg.Worker.Concurrency)
	groups, err := det.Split(ctx, kept)
	if err != nil {
		return nil, err
	}
	metrics.ObserveStage(StageSplit, time.Since(start))
	metrics.AddReports(len(groups))
	res.Stats.Reports = len(groups)

	if err := dedupStage(ctx, groups, cfg, res); err != nil {
		return nil, err
	}

	log.Info().
		Int("total", res.Stats.TotalPages).
		Int("blank", res.Stats.BlankPages).
		Int("skipped", res.Stats.SkippedPages).
		Int("reports", res.Stats.Reports).
		Int("duplicates", res.Stats.Duplicates).
		Msg("pipeline finished")
	return res, nil
}

// analyzeStage classifies every page and returns the kept ones in
// original order.
func analyzeStage(ctx context.Context, pages []page.Page, cfg config.Config, res *Result) ([]page.Page, error) {
	start := time.Now()
	defer func() { metrics.ObserveStage(StageAnalyze, time.Since(start)) }()

	records := make([]PageRecord, len(pages))
	verdicts := make([]analyzer.BlankVerdict, len(pages))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Worker.Concurrency)
	for i := range pages {
		g.Go(func() error {
			p := pages[i]
			if err := p.Validate(); err != nil {
				var ie *page.InvalidImageError
				if errors.As(err, &ie) {
					records[i] = PageRecord{Index: p.OriginalIndex, Status: StatusSkipped, Reason: ie.Reason}
					return nil
				}
				return err
			}
			m, err := analyzer.Extract(p.Image, cfg.Blank.UseEdgeDetection)
			if err != nil {
				records[i] = PageRecord{Index: p.OriginalIndex, Status: StatusSkipped, Reason: err.Error()}
				return nil
			}
			v := analyzer.Classify(p.OriginalIndex, m, cfg.Blank)
			verdicts[i] = v
			status := StatusKept
			if v.IsBlank {
				status = StatusBlank
			}
			records[i] = PageRecord{Index: p.OriginalIndex, Status: status, Votes: &verdicts[i].Votes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := make([]page.Page, 0, len(pages))
	for i, rec := range records {
		res.Pages = append(res.Pages, rec)
		metrics.IncPage(rec.Status)
		switch rec.Status {
		case StatusKept:
			kept = append(kept, pages[i])
			res.Stats.KeptPages++
		case StatusBlank:
			res.Stats.BlankPages++
		case StatusSkipped:
			res.Stats.SkippedPages++
		}
	}
	return kept, nil
}

// dedupStage drops near-duplicates. With splitting enabled whole
// report groups are the comparison unit; with splitting disabled the
// detector never ran, so pages are compared individually instead of
// hiding every page inside one giant group.
func dedupStage(ctx context.Context, groups []page.ReportGroup, cfg config.Config, res *Result) error {
	start := time.Now()
	defer func() { metrics.ObserveStage(StageDedup, time.Since(start)) }()

	if !cfg.Dedup.Enabled || len(groups) == 0 {
		for gi, g := range groups {
			res.Reports = append(res.Reports, ReportRecord{
				Index:       gi,
				PageIndices: g.Indices(),
				Dedup:       dedup.Decision{Index: gi, DuplicateOf: -1},
			})
		}
		res.Kept = groups
		return nil
	}

	algo, err := fingerprint.Parse(cfg.Dedup.HashAlgorithm)
	if err != nil {
		return err
	}
	if cfg.Split.Enabled {
		return dedupGroups(ctx, groups, algo, cfg, res)
	}
	return dedupPages(ctx, groups[0], algo, cfg, res)
}

func dedupPolicy(cfg config.DedupConfig) dedup.Policy {
	return dedup.Policy{
		HammingThreshold:     cfg.HammingDistanceThreshold,
		SimilarityThreshold:  cfg.SimilarityThreshold,
		CompareFirstPageOnly: cfg.CompareFirstPageOnly,
	}
}

// dedupGroups fingerprints each report group and drops duplicate
// groups. A group whose fingerprints cannot be computed is kept as-is
// rather than risking a false drop.
func dedupGroups(ctx context.Context, groups []page.ReportGroup, algo fingerprint.Algorithm, cfg config.Config, res *Result) error {
	items := make([]dedup.Item, len(groups))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Worker.Concurrency)
	for gi := range groups {
		g.Go(func() error {
			item := dedup.Item{Index: gi}
			for _, p := range groups[gi].Pages {
				fp, err := fingerprint.Compute(p.OriginalIndex, p.Image, algo, cfg.Dedup.HashSize)
				if err != nil {
					log.Warn().Int("page", p.OriginalIndex).Err(err).Msg("fingerprint failed, keeping group")
					item.Pages = nil
					break
				}
				item.Pages = append(item.Pages, fp)
			}
			items[gi] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	decisions := dedup.Filter(items, dedupPolicy(cfg.Dedup))
	for gi, d := range decisions {
		res.Reports = append(res.Reports, ReportRecord{
			Index:       gi,
			PageIndices: groups[gi].Indices(),
			Dedup:       d,
		})
		if d.IsDuplicate {
			metrics.IncDuplicate()
			res.Stats.Duplicates++
			continue
		}
		res.Kept = append(res.Kept, groups[gi])
	}
	return nil
}

// dedupPages compares the surviving pages of an unsplit document one
// by one and drops duplicate pages. Item indices are original page
// indices, so decisions reference pages directly. The survivors stay
// together as the single output group.
func dedupPages(ctx context.Context, grp page.ReportGroup, algo fingerprint.Algorithm, cfg config.Config, res *Result) error {
	items := make([]dedup.Item, len(grp.Pages))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Worker.Concurrency)
	for i := range grp.Pages {
		g.Go(func() error {
			p := grp.Pages[i]
			item := dedup.Item{Index: p.OriginalIndex}
			fp, err := fingerprint.Compute(p.OriginalIndex, p.Image, algo, cfg.Dedup.HashSize)
			if err != nil {
				log.Warn().Int("page", p.OriginalIndex).Err(err).Msg("fingerprint failed, keeping page")
			} else {
				item.Pages = []fingerprint.Fingerprint{fp}
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	decisions := dedup.Filter(items, dedupPolicy(cfg.Dedup))
	survivors := page.ReportGroup{}
	for i, d := range decisions {
		if d.IsDuplicate {
			metrics.IncDuplicate()
			res.Stats.Duplicates++
			markDuplicatePage(res, d)
			continue
		}
		survivors.Pages = append(survivors.Pages, grp.Pages[i])
	}

	res.Reports = append(res.Reports, ReportRecord{
		Index:       0,
		PageIndices: survivors.Indices(),
		Dedup:       dedup.Decision{Index: 0, DuplicateOf: -1},
	})
	res.Kept = append(res.Kept, survivors)
	return nil
}

// markDuplicatePage rewrites the audit record of a page dropped by
// page-level dedup. d.Index and d.DuplicateOf are original indices.
func markDuplicatePage(res *Result, d dedup.Decision) {
	for i := range res.Pages {
		if res.Pages[i].Index == d.Index {
			res.Pages[i].Status = StatusDuplicate
			dd := d
			res.Pages[i].Dedup = &dd
			return
		}
	}
}
