// Package ocr defines the OCR collaborator contract used by the
// report-boundary detector.
package ocr

import (
	"context"
	"errors"
	"image"
)

// Result carries the recognized text of an image region and the mean
// word confidence on a 0-100 scale.
type Result struct {
	Text       string
	Confidence float64
}

// Engine recognizes text in a single image. Implementations are local
// and CPU-bound; callers time-box invocations via ctx.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) (Result, error)
	Close() error
}

// UnavailableError reports that the OCR engine cannot run at all
// (missing tesseract install, unusable language data). It is a
// degraded-mode condition: callers fall back to heuristics and
// continue, they never abort the pipeline.
type UnavailableError struct {
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return "ocr unavailable: " + e.Reason + ": " + e.Err.Error()
	}
	return "ocr unavailable: " + e.Reason
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err marks the engine as unusable.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
