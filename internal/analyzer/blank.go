package analyzer

import (
	"github.com/local/scancleaner/internal/config"
)

// Votes records which criteria fired for a page. A disabled criterion
// never fires.
type Votes struct {
	VarianceLow bool `json:"variance_low"`
	EdgesLow    bool `json:"edges_low"`
	MostlyWhite bool `json:"mostly_white"`
}

// BlankVerdict is the classifier's decision for one page.
type BlankVerdict struct {
	PageIndex int   `json:"page_index"`
	IsBlank   bool  `json:"is_blank"`
	Votes     Votes `json:"votes"`
}

// criterion is one tagged vote in the blank rule engine.
type criterion struct {
	name    string
	enabled bool
	fired   bool
}

// votesRequired is the arity rule: a strict majority of the enabled
// criteria, floor(n/2)+1. With three criteria that is 2-of-3; with edge
// detection disabled the two remaining criteria must BOTH fire. The
// even-count case is deliberately stricter than dropping a vote and is
// pending product-owner confirmation; do not change it silently.
func votesRequired(enabled int) int { return enabled/2 + 1 }

// Classify applies the weighted vote to precomputed page metrics.
// Pure: same metrics and config always give the same verdict.
func Classify(pageIndex int, m PageMetrics, cfg config.BlankConfig) BlankVerdict {
	criteria := []criterion{
		{name: "variance_low", enabled: true, fired: m.Variance < cfg.VarianceThreshold},
		{name: "edges_low", enabled: cfg.UseEdgeDetection, fired: cfg.UseEdgeDetection && m.EdgeCount < cfg.EdgeThreshold},
		{name: "mostly_white", enabled: true, fired: m.WhiteRatio >= cfg.WhitePixelRatio},
	}

	enabled, fired := 0, 0
	for _, c := range criteria {
		if !c.enabled {
			continue
		}
		enabled++
		if c.fired {
			fired++
		}
	}

	return BlankVerdict{
		PageIndex: pageIndex,
		IsBlank:   fired >= votesRequired(enabled),
		Votes: Votes{
			VarianceLow: criteria[0].fired,
			EdgesLow:    criteria[1].fired,
			MostlyWhite: criteria[2].fired,
		},
	}
}
