package splitter

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/local/scancleaner/internal/config"
	"github.com/local/scancleaner/internal/ocr"
	"github.com/local/scancleaner/internal/page"
)

// fakeEngine returns canned results keyed by the header crop width, so
// tests stay independent of OCR call order.
type fakeEngine struct {
	byWidth map[int]ocr.Result
	err     error
}

func (f *fakeEngine) Recognize(_ context.Context, img image.Image) (ocr.Result, error) {
	if f.err != nil {
		return ocr.Result{}, f.err
	}
	return f.byWidth[img.Bounds().Dx()], nil
}

func (f *fakeEngine) Close() error { return nil }

func grayPage(idx, w int, headerShade, bodyShade uint8) page.Page {
	img := image.NewGray(image.Rect(0, 0, w, 100))
	headerRows := 20
	for y := 0; y < 100; y++ {
		shade := bodyShade
		if y < headerRows {
			shade = headerShade
		}
		for x := 0; x < w; x++ {
			img.Pix[y*img.Stride+x] = shade
		}
	}
	return page.Page{OriginalIndex: idx, Image: img, HeaderRegion: page.DefaultHeaderRegion}
}

func splitCfg() config.SplitConfig {
	return config.SplitConfig{
		Enabled:        true,
		UseOCR:         true,
		MinConfidence:  60,
		HeaderKeywords: []string{"patient name", "hospital"},
		HeaderRegion:   page.DefaultHeaderRegion,
		OCRTimeout:     time.Second,
	}
}

func groupIndices(groups []page.ReportGroup) [][]int {
	out := make([][]int, len(groups))
	for i, g := range groups {
		out[i] = g.Indices()
	}
	return out
}

func TestSplitDisabledSingleGroup(t *testing.T) {
	cfg := splitCfg()
	cfg.Enabled = false
	pages := []page.Page{grayPage(0, 100, 128, 128), grayPage(1, 100, 128, 128)}

	groups, err := New(cfg, nil, 2).Split(context.Background(), pages)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(groups) != 1 || groups[0].Len() != 2 {
		t.Fatalf("groups = %v, want one group of 2", groupIndices(groups))
	}
}

func TestSplitEmptyAndSinglePage(t *testing.T) {
	d := New(splitCfg(), nil, 2)
	groups, err := d.Split(context.Background(), nil)
	if err != nil || groups != nil {
		t.Fatalf("Split(nil) = %v, %v, want nil, nil", groups, err)
	}
	groups, err = d.Split(context.Background(), []page.Page{grayPage(0, 100, 128, 128)})
	if err != nil || len(groups) != 1 {
		t.Fatalf("single page: %v groups, err %v", len(groups), err)
	}
}

func TestSplitByOCRHeaders(t *testing.T) {
	// Distinct widths key the fake results; pages 0 and 2 carry header
	// keywords.
	pages := []page.Page{
		grayPage(0, 100, 128, 128),
		grayPage(1, 110, 128, 128),
		grayPage(2, 120, 128, 128),
		grayPage(3, 130, 128, 128),
	}
	engine := &fakeEngine{byWidth: map[int]ocr.Result{
		100: {Text: "PATIENT NAME: DOE, J", Confidence: 91},
		110: {Text: "continued findings", Confidence: 88},
		120: {Text: "General Hospital Radiology", Confidence: 85},
		130: {Text: "impression", Confidence: 90},
	}}

	groups, err := New(splitCfg(), engine, 4).Split(context.Background(), pages)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %v, want 2", groupIndices(groups))
	}
	want := [][]int{{0, 1}, {2, 3}}
	got := groupIndices(groups)
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("group %d = %v, want %v", i, got[i], want[i])
		}
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("group %d = %v, want %v", i, got[i], want[i])
			}
		}
	}
}

func TestSplitConfidenceGate(t *testing.T) {
	pages := []page.Page{
		grayPage(0, 100, 128, 128),
		grayPage(1, 110, 128, 128),
	}
	// Keyword present but confidence below the minimum: no boundary,
	// and identical headers keep the pixel heuristic quiet too.
	engine := &fakeEngine{byWidth: map[int]ocr.Result{
		100: {Text: "patient name: doe", Confidence: 95},
		110: {Text: "patient name: roe", Confidence: 30},
	}}

	groups, err := New(splitCfg(), engine, 2).Split(context.Background(), pages)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %v, want 1", groupIndices(groups))
	}
}

func TestSplitFirstPageAlwaysOpensGroupZero(t *testing.T) {
	// Page 0 has no header text at all; it still starts group 0.
	pages := []page.Page{
		grayPage(0, 100, 128, 128),
		grayPage(1, 110, 128, 128),
	}
	engine := &fakeEngine{byWidth: map[int]ocr.Result{
		100: {Text: "", Confidence: 0},
		110: {Text: "hospital admission", Confidence: 90},
	}}

	groups, err := New(splitCfg(), engine, 2).Split(context.Background(), pages)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(groups) != 2 || groups[0].Pages[0].OriginalIndex != 0 {
		t.Fatalf("groups = %v, want page 0 opening group 0", groupIndices(groups))
	}
}

func TestSplitFallsBackToPixelsWhenOCRUnavailable(t *testing.T) {
	engine := &fakeEngine{err: &ocr.UnavailableError{Reason: "no tesseract"}}

	// Header shade flips between pages 1 and 2; the pixel heuristic
	// must pick that up once OCR is out.
	pages := []page.Page{
		grayPage(0, 100, 255, 128),
		grayPage(1, 100, 255, 128),
		grayPage(2, 100, 0, 128),
		grayPage(3, 100, 0, 128),
	}

	groups, err := New(splitCfg(), engine, 2).Split(context.Background(), pages)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	got := groupIndices(groups)
	if len(groups) != 2 || groups[1].Pages[0].OriginalIndex != 2 {
		t.Fatalf("groups = %v, want boundary before page 2", got)
	}
}

func TestSplitWithoutOCRUsesPixels(t *testing.T) {
	cfg := splitCfg()
	cfg.UseOCR = false

	pages := []page.Page{
		grayPage(0, 100, 255, 128),
		grayPage(1, 100, 0, 128),
	}
	groups, err := New(cfg, nil, 2).Split(context.Background(), pages)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %v, want 2", groupIndices(groups))
	}
}

func TestIsHeaderMatchingIsCaseInsensitive(t *testing.T) {
	d := New(splitCfg(), nil, 1)
	tests := []struct {
		res  ocr.Result
		want bool
	}{
		{ocr.Result{Text: "PATIENT NAME: X", Confidence: 80}, true},
		{ocr.Result{Text: "Patient Name", Confidence: 60}, true},
		{ocr.Result{Text: "patient name", Confidence: 59.9}, false},
		{ocr.Result{Text: "no keywords here", Confidence: 99}, false},
		{ocr.Result{Text: "", Confidence: 99}, false},
	}
	for _, tc := range tests {
		if got := d.isHeader(tc.res); got != tc.want {
			t.Errorf("isHeader(%q, %v) = %v, want %v", tc.res.Text, tc.res.Confidence, got, tc.want)
		}
	}
}
