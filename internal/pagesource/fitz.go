package pagesource

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"

	"github.com/local/scancleaner/internal/config"
	"github.com/local/scancleaner/internal/page"
)

// Rasterize renders every page of the resolved PDF at the configured
// DPI. A page that fails to render still occupies its slot, with a nil
// image, so downstream indices stay aligned with the original
// document; the pipeline records it as skipped.
func Rasterize(src *Source, cfg config.PDFConfig, headerRegion page.Region) ([]page.Page, error) {
	doc, err := fitz.New(src.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := make([]page.Page, 0, src.PageCount)
	for i := 0; i < src.PageCount; i++ {
		img, err := doc.ImageDPI(i, float64(cfg.DPI))
		if err != nil {
			log.Warn().Int("page", i).Err(err).Msg("page render failed")
			pages = append(pages, page.Page{OriginalIndex: i, HeaderRegion: headerRegion})
			continue
		}
		pages = append(pages, page.Page{
			OriginalIndex: i,
			Image:         toColorMode(img, cfg.ColorMode),
			HeaderRegion:  headerRegion,
		})
	}
	return pages, nil
}

// toColorMode converts the go-fitz RGBA render to the configured mode.
func toColorMode(img image.Image, mode string) image.Image {
	if mode != "gray" {
		return img
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}
