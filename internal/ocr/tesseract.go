package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract runs OCR through the system tesseract install. Each
// Recognize call uses its own gosseract client, so a single Tesseract
// value is safe for concurrent use.
type Tesseract struct {
	language string
}

// NewTesseract probes the tesseract install once and returns an engine
// bound to the given language (for example "eng"). A broken install or
// missing language data comes back as *UnavailableError.
func NewTesseract(language string) (*Tesseract, error) {
	if language == "" {
		language = "eng"
	}
	c := gosseract.NewClient()
	defer c.Close()
	if err := c.SetLanguage(language); err != nil {
		return nil, &UnavailableError{Reason: "language " + language, Err: err}
	}
	return &Tesseract{language: language}, nil
}

func (t *Tesseract) Close() error { return nil }

// Recognize OCRs the whole image and reports the text plus the mean
// word confidence. The blocking C call cannot be interrupted, so on
// ctx expiry the result is abandoned and ctx.Err() returned.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (Result, error) {
	data, err := encodePNG(img)
	if err != nil {
		return Result{}, err
	}

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := t.recognize(data)
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case o := <-done:
		return o.res, o.err
	}
}

func (t *Tesseract) recognize(data []byte) (Result, error) {
	c := gosseract.NewClient()
	defer c.Close()

	if err := c.SetLanguage(t.language); err != nil {
		return Result{}, &UnavailableError{Reason: "language " + t.language, Err: err}
	}
	// PSM 6: header crops are a single uniform block of text.
	if err := c.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return Result{}, fmt.Errorf("set page seg mode: %w", err)
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}

	return Result{
		Text:       strings.TrimSpace(text),
		Confidence: meanWordConfidence(c),
	}, nil
}

// meanWordConfidence averages the per-word confidences tesseract
// reports (already on a 0-100 scale). No words means zero confidence.
func meanWordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes))
}

func encodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
