// Package analyzer computes per-page scalar signals and classifies
// blank pages from them.
package analyzer

import (
	"image"
	"image/draw"

	"gonum.org/v1/gonum/stat"

	"github.com/local/scancleaner/internal/page"
)

// whiteCutoff is the intensity above which a pixel counts as light.
const whiteCutoff = 240

// sobelCutoff is the gradient magnitude above which a pixel counts as
// an edge response.
const sobelCutoff = 128

// PageMetrics are the per-page signals the blank classifier votes on.
// They are computed once per page and never recomputed within a run.
type PageMetrics struct {
	Variance   float64
	EdgeCount  int
	WhiteRatio float64
}

// Extract computes the metrics for a single page image. withEdges skips
// the edge pass when the edge criterion is disabled. A nil or
// zero-sized image fails with *page.InvalidImageError.
func Extract(img image.Image, withEdges bool) (PageMetrics, error) {
	gray, err := toGray(img)
	if err != nil {
		return PageMetrics{}, err
	}

	b := gray.Bounds()
	total := b.Dx() * b.Dy()
	vals := make([]float64, 0, total)
	white := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[(y-b.Min.Y)*gray.Stride : (y-b.Min.Y)*gray.Stride+b.Dx()]
		for _, v := range row {
			vals = append(vals, float64(v))
			if v > whiteCutoff {
				white++
			}
		}
	}

	m := PageMetrics{
		Variance:   stat.Moment(2, vals, nil),
		WhiteRatio: float64(white) / float64(total),
	}
	if withEdges {
		m.EdgeCount = sobelEdgeCount(gray)
	}
	return m, nil
}

// toGray converts any image to a tightly packed grayscale buffer.
func toGray(img image.Image) (*image.Gray, error) {
	if img == nil {
		return nil, &page.InvalidImageError{PageIndex: -1, Reason: "nil image"}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &page.InvalidImageError{PageIndex: -1, Reason: "zero-sized image"}
	}
	if g, ok := img.(*image.Gray); ok && g.Stride >= b.Dx() {
		return g, nil
	}
	g := image.NewGray(b)
	draw.Draw(g, b, img, b.Min, draw.Src)
	return g, nil
}

// sobelEdgeCount counts pixels whose Sobel gradient magnitude exceeds
// the edge cutoff. Border pixels are skipped.
func sobelEdgeCount(g *image.Gray) int {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}
	at := func(x, y int) int {
		return int(g.Pix[y*g.Stride+x])
	}
	count := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			if gx < 0 {
				gx = -gx
			}
			if gy < 0 {
				gy = -gy
			}
			if gx+gy >= sobelCutoff {
				count++
			}
		}
	}
	return count
}
