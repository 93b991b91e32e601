// Package page defines the records that flow through the cleaning
// pipeline: scanned pages, their header regions and report groups.
package page

import (
	"fmt"
	"image"
	"image/draw"
)

// Region is a sub-rectangle expressed as ratios of the page dimensions,
// (X1,Y1) top-left to (X2,Y2) bottom-right, each in [0,1].
type Region struct {
	X1, Y1, X2, Y2 float64
}

// DefaultHeaderRegion covers the top 20% of a page.
var DefaultHeaderRegion = Region{X1: 0, Y1: 0, X2: 1.0, Y2: 0.2}

// Rect maps the ratio region onto concrete pixel bounds.
func (r Region) Rect(bounds image.Rectangle) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	return image.Rect(
		bounds.Min.X+int(r.X1*w),
		bounds.Min.Y+int(r.Y1*h),
		bounds.Min.X+int(r.X2*w),
		bounds.Min.Y+int(r.Y2*h),
	)
}

// Page is one scanned page. OriginalIndex is the zero-based position in
// the source document and is the only identity that survives filtering;
// every downstream collection carries it so results can be traced back.
// Pages are never mutated after creation.
type Page struct {
	OriginalIndex int
	Image         image.Image
	HeaderRegion  Region
}

// Validate reports whether the page carries a usable image buffer.
func (p Page) Validate() error {
	if p.Image == nil {
		return &InvalidImageError{PageIndex: p.OriginalIndex, Reason: "nil image"}
	}
	b := p.Image.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return &InvalidImageError{PageIndex: p.OriginalIndex, Reason: fmt.Sprintf("zero-sized image %dx%d", b.Dx(), b.Dy())}
	}
	return nil
}

// HeaderImage returns the header sub-image of the page. The crop is
// lazy: nothing is computed until a detector asks for it.
func (p Page) HeaderImage() image.Image {
	rect := p.HeaderRegion.Rect(p.Image.Bounds())
	if sub, ok := p.Image.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect)
	}
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), p.Image, rect.Min, draw.Src)
	return out
}

// ReportGroup is an ordered, non-empty run of pages forming one logical
// sub-document. Groups partition the surviving page sequence with no
// gaps or overlaps.
type ReportGroup struct {
	Pages []Page
}

// Len returns the number of pages in the group.
func (g ReportGroup) Len() int { return len(g.Pages) }

// Indices returns the original page indices of the group, in order.
func (g ReportGroup) Indices() []int {
	out := make([]int, len(g.Pages))
	for i, p := range g.Pages {
		out[i] = p.OriginalIndex
	}
	return out
}

// InvalidImageError marks a malformed or zero-sized page image. It is
// fatal to that page only: the pipeline records and skips the page, it
// never aborts the run.
type InvalidImageError struct {
	PageIndex int
	Reason    string
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("invalid image on page %d: %s", e.PageIndex, e.Reason)
}
