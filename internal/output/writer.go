// Package output persists cleaned documents to disk and optionally to
// S3.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/scancleaner/internal/config"
	"github.com/local/scancleaner/internal/page"
)

// Manifest lists everything one run wrote, paths relative to Dir.
type Manifest struct {
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
}

// Writer materializes report groups under cfg.Dir/<runID>/. Output
// format, naming and metadata emission follow the config.
type Writer struct {
	cfg      config.OutputConfig
	uploader *Uploader
}

// NewWriter builds a writer. uploader may be nil when no S3 target is
// configured.
func NewWriter(cfg config.OutputConfig, uploader *Uploader) *Writer {
	return &Writer{cfg: cfg, uploader: uploader}
}

// Write persists the kept report groups and, when enabled, a metadata
// JSON document describing the run. Pages with nil images were skipped
// upstream and are silently absent from the output.
func (w *Writer) Write(ctx context.Context, runID string, groups []page.ReportGroup, metadata any) (*Manifest, error) {
	dir := filepath.Join(w.cfg.Dir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	m := &Manifest{Dir: dir}

	wantPDF := w.cfg.Format == "pdf" || w.cfg.Format == "both"
	wantImages := w.cfg.Format == "images" || w.cfg.Format == "both"

	for gi, g := range groups {
		// Report numbering is 1-based in filenames.
		base := fmt.Sprintf(w.cfg.NamingPattern, gi+1)

		pngs, err := w.writePages(dir, base, g)
		if err != nil {
			return nil, err
		}
		if len(pngs) == 0 {
			log.Warn().Int("report", gi).Msg("report group has no renderable pages")
			continue
		}

		if wantPDF {
			pdfPath := filepath.Join(dir, base+".pdf")
			if err := api.ImportImagesFile(pngs, pdfPath, nil, nil); err != nil {
				return nil, fmt.Errorf("assemble %s: %w", base, err)
			}
			m.Files = append(m.Files, base+".pdf")
		}
		if wantImages {
			for _, p := range pngs {
				m.Files = append(m.Files, filepath.Base(p))
			}
		} else {
			for _, p := range pngs {
				_ = os.Remove(p)
			}
		}
	}

	if w.cfg.IncludeMetadata {
		data, err := json.MarshalIndent(metadata, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644); err != nil {
			return nil, fmt.Errorf("write metadata: %w", err)
		}
		m.Files = append(m.Files, "metadata.json")
	}

	if w.uploader != nil && w.cfg.S3Bucket != "" {
		if err := w.upload(ctx, runID, m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// writePages encodes each page of a group as PNG next to the final
// outputs. The PNGs double as pdfcpu import sources.
func (w *Writer) writePages(dir, base string, g page.ReportGroup) ([]string, error) {
	var paths []string
	for pi, p := range g.Pages {
		if p.Image == nil {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_page_%03d.png", base, pi))
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		if err := png.Encode(f, p.Image); err != nil {
			f.Close()
			return nil, fmt.Errorf("encode %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (w *Writer) upload(ctx context.Context, runID string, m *Manifest) error {
	for _, name := range m.Files {
		key := filepath.ToSlash(filepath.Join(w.cfg.S3Prefix, runID, name))
		if err := w.uploader.Upload(ctx, w.cfg.S3Bucket, key, filepath.Join(m.Dir, name)); err != nil {
			return fmt.Errorf("upload %s: %w", name, err)
		}
	}
	log.Info().Str("bucket", w.cfg.S3Bucket).Int("files", len(m.Files)).Msg("uploaded run outputs")
	return nil
}
