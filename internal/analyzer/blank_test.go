package analyzer

import (
	"errors"
	"image"
	"testing"

	"github.com/local/scancleaner/internal/config"
	"github.com/local/scancleaner/internal/page"
)

func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func checkerboard(w, h, cell int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.Pix[y*img.Stride+x] = 255
			}
		}
	}
	return img
}

func TestExtractWhitePage(t *testing.T) {
	m, err := Extract(uniformGray(64, 64, 255), true)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if m.Variance != 0 {
		t.Errorf("variance = %v, want 0", m.Variance)
	}
	if m.WhiteRatio != 1.0 {
		t.Errorf("white ratio = %v, want 1.0", m.WhiteRatio)
	}
	if m.EdgeCount != 0 {
		t.Errorf("edge count = %d, want 0", m.EdgeCount)
	}
}

func TestExtractTextLikePage(t *testing.T) {
	m, err := Extract(checkerboard(64, 64, 4), true)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if m.Variance < 1000 {
		t.Errorf("variance = %v, want high", m.Variance)
	}
	if m.WhiteRatio > 0.6 {
		t.Errorf("white ratio = %v, want ~0.5", m.WhiteRatio)
	}
	if m.EdgeCount == 0 {
		t.Error("edge count = 0, want edges on a checkerboard")
	}
}

func TestExtractSkipsEdgePass(t *testing.T) {
	m, err := Extract(checkerboard(64, 64, 4), false)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if m.EdgeCount != 0 {
		t.Errorf("edge count = %d, want 0 when disabled", m.EdgeCount)
	}
}

func TestExtractInvalidImage(t *testing.T) {
	var ie *page.InvalidImageError
	if _, err := Extract(nil, true); !errors.As(err, &ie) {
		t.Fatalf("Extract(nil) = %v, want InvalidImageError", err)
	}
	if _, err := Extract(image.NewGray(image.Rect(0, 0, 0, 0)), true); !errors.As(err, &ie) {
		t.Fatalf("Extract(empty) = %v, want InvalidImageError", err)
	}
}

func TestClassifyVoting(t *testing.T) {
	cfg := config.BlankConfig{
		VarianceThreshold: 100,
		EdgeThreshold:     50,
		WhitePixelRatio:   0.95,
		UseEdgeDetection:  true,
	}

	tests := []struct {
		name      string
		m         PageMetrics
		cfg       config.BlankConfig
		wantBlank bool
	}{
		{
			name:      "white page fires all three",
			m:         PageMetrics{Variance: 0, EdgeCount: 0, WhiteRatio: 1.0},
			cfg:       cfg,
			wantBlank: true,
		},
		{
			name:      "text page fires nothing",
			m:         PageMetrics{Variance: 5000, EdgeCount: 900, WhiteRatio: 0.4},
			cfg:       cfg,
			wantBlank: false,
		},
		{
			name:      "two of three is enough",
			m:         PageMetrics{Variance: 10, EdgeCount: 5, WhiteRatio: 0.5},
			cfg:       cfg,
			wantBlank: true,
		},
		{
			name:      "one of three is kept",
			m:         PageMetrics{Variance: 10, EdgeCount: 500, WhiteRatio: 0.5},
			cfg:       cfg,
			wantBlank: false,
		},
		{
			name: "edges disabled needs both remaining votes",
			m:    PageMetrics{Variance: 10, WhiteRatio: 0.5},
			cfg: config.BlankConfig{
				VarianceThreshold: 100,
				EdgeThreshold:     50,
				WhitePixelRatio:   0.95,
				UseEdgeDetection:  false,
			},
			wantBlank: false,
		},
		{
			name: "edges disabled blank when both fire",
			m:    PageMetrics{Variance: 10, WhiteRatio: 0.99},
			cfg: config.BlankConfig{
				VarianceThreshold: 100,
				EdgeThreshold:     50,
				WhitePixelRatio:   0.95,
				UseEdgeDetection:  false,
			},
			wantBlank: true,
		},
		{
			name:      "white ratio at threshold counts",
			m:         PageMetrics{Variance: 10, EdgeCount: 500, WhiteRatio: 0.95},
			cfg:       cfg,
			wantBlank: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := Classify(7, tc.m, tc.cfg)
			if v.IsBlank != tc.wantBlank {
				t.Errorf("IsBlank = %v, want %v (votes %+v)", v.IsBlank, tc.wantBlank, v.Votes)
			}
			if v.PageIndex != 7 {
				t.Errorf("PageIndex = %d, want 7", v.PageIndex)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	cfg := config.Default().Blank
	m := PageMetrics{Variance: 50, EdgeCount: 10, WhiteRatio: 0.97}
	first := Classify(0, m, cfg)
	for i := 0; i < 5; i++ {
		if got := Classify(0, m, cfg); got != first {
			t.Fatalf("verdict changed between calls: %+v vs %+v", got, first)
		}
	}
}

func TestVotesRequired(t *testing.T) {
	tests := []struct{ enabled, want int }{
		{1, 1},
		{2, 2},
		{3, 2},
		{4, 3},
	}
	for _, tc := range tests {
		if got := votesRequired(tc.enabled); got != tc.want {
			t.Errorf("votesRequired(%d) = %d, want %d", tc.enabled, got, tc.want)
		}
	}
}

func TestDisabledEdgeCriterionNeverVotes(t *testing.T) {
	cfg := config.BlankConfig{
		VarianceThreshold: 100,
		EdgeThreshold:     50,
		WhitePixelRatio:   0.95,
		UseEdgeDetection:  false,
	}
	// EdgeCount below threshold must not count while disabled.
	v := Classify(0, PageMetrics{Variance: 500, EdgeCount: 0, WhiteRatio: 0.5}, cfg)
	if v.Votes.EdgesLow {
		t.Error("disabled edge criterion voted")
	}
	if v.IsBlank {
		t.Error("page marked blank with no enabled criterion firing")
	}
}
