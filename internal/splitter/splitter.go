// Package splitter groups consecutive pages into reports by finding
// header pages.
package splitter

import (
	"context"
	"errors"
	"image"
	"strings"

	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/local/scancleaner/internal/config"
	"github.com/local/scancleaner/internal/metrics"
	"github.com/local/scancleaner/internal/ocr"
	"github.com/local/scancleaner/internal/page"
)

// pixelDiffCutoff is the mean absolute intensity difference between
// two header strips above which the pixel heuristic calls a boundary.
const pixelDiffCutoff = 30

// headerScanW and headerScanH normalize header strips before the
// pixel comparison so page size does not skew the diff.
const (
	headerScanW = 256
	headerScanH = 64
)

// BoundarySignal decides whether cur starts a new report. prev is the
// previous page in scan order.
type BoundarySignal interface {
	Name() string
	IsBoundary(ctx context.Context, prev, cur page.Page) (bool, error)
}

// Detector assigns every page to exactly one report group. Page order
// is never changed and page 0 always opens group 0.
type Detector struct {
	cfg     config.SplitConfig
	engine  ocr.Engine
	workers int
}

// New builds a detector. engine may be nil, which forces the pixel
// heuristic for every boundary decision.
func New(cfg config.SplitConfig, engine ocr.Engine, workers int) *Detector {
	if workers < 1 {
		workers = 1
	}
	return &Detector{cfg: cfg, engine: engine, workers: workers}
}

// headerVerdict is one page's OCR outcome from the parallel prepass.
type headerVerdict struct {
	isHeader bool
	ok       bool
}

// Split partitions pages into report groups. Splitting disabled means
// one group holding everything. OCR trouble on a page degrades that
// decision to the pixel heuristic, it never fails the run.
func (d *Detector) Split(ctx context.Context, pages []page.Page) ([]page.ReportGroup, error) {
	if len(pages) == 0 {
		return nil, nil
	}
	if !d.cfg.Enabled || len(pages) == 1 {
		return []page.ReportGroup{{Pages: pages}}, nil
	}

	var verdicts []headerVerdict
	if d.cfg.UseOCR && d.engine != nil {
		verdicts = d.scanHeaders(ctx, pages)
	} else {
		verdicts = make([]headerVerdict, len(pages))
	}

	groups := []page.ReportGroup{{Pages: []page.Page{pages[0]}}}
	for i := 1; i < len(pages); i++ {
		boundary := false
		if verdicts[i].ok {
			boundary = verdicts[i].isHeader
		} else {
			metrics.IncOCRFallback()
			boundary = pixelBoundary(pages[i-1], pages[i])
		}
		if boundary {
			groups = append(groups, page.ReportGroup{})
		}
		last := len(groups) - 1
		groups[last].Pages = append(groups[last].Pages, pages[i])
	}
	return groups, nil
}

// scanHeaders OCRs every header strip in parallel. Verdicts for pages
// whose OCR failed come back with ok=false; an unavailable engine
// fails them all at once.
func (d *Detector) scanHeaders(ctx context.Context, pages []page.Page) []headerVerdict {
	verdicts := make([]headerVerdict, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i := range pages {
		g.Go(func() error {
			header := pages[i].HeaderImage()

			callCtx := gctx
			if d.cfg.OCRTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, d.cfg.OCRTimeout)
				defer cancel()
			}
			res, err := d.engine.Recognize(callCtx, header)
			if err != nil {
				if ocr.IsUnavailable(err) {
					// Poison every verdict, the pixel heuristic
					// takes over for the whole document.
					return err
				}
				log.Warn().Int("page", pages[i].OriginalIndex).Err(err).Msg("header ocr failed")
				return nil
			}
			verdicts[i] = headerVerdict{isHeader: d.isHeader(res), ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ocr.IsUnavailable(err) {
			log.Warn().Err(err).Msg("ocr unavailable, using pixel heuristic")
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Err(err).Msg("header scan interrupted")
		}
		return make([]headerVerdict, len(pages))
	}
	return verdicts
}

// isHeader applies the keyword and confidence gates to one OCR result.
// Matching is case-insensitive on both sides.
func (d *Detector) isHeader(res ocr.Result) bool {
	if res.Confidence < d.cfg.MinConfidence {
		return false
	}
	text := strings.ToLower(res.Text)
	for _, kw := range d.cfg.HeaderKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// pixelBoundary compares the header strips of two adjacent pages. A
// large mean difference means the header changed, so cur starts a new
// report.
func pixelBoundary(prev, cur page.Page) bool {
	a := prev.HeaderImage()
	b := cur.HeaderImage()
	return meanAbsDiff(normalizeStrip(a), normalizeStrip(b)) > pixelDiffCutoff
}

// normalizeStrip shrinks a header crop to the fixed comparison grid.
func normalizeStrip(img image.Image) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, headerScanW, headerScanH))
	xdraw.BiLinear.Scale(g, g.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return g
}

func meanAbsDiff(a, b *image.Gray) float64 {
	total := headerScanW * headerScanH
	sum := 0
	for i := 0; i < total; i++ {
		d := int(a.Pix[i]) - int(b.Pix[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float64(sum) / float64(total)
}
