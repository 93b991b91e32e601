package config

import (
    "fmt"
)

// ValidationError is a fatal configuration error. It aborts the pipeline
// before any page is processed.
type ValidationError struct {
    Field   string
    Message string
}

func (e *ValidationError) Error() string {
    return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

var hashAlgorithms = map[string]bool{
    "average_hash": true,
    "phash":        true,
    "dhash":        true,
    "whash":        true,
}

// Validate checks every threshold the pipeline will read. It is called
// once at pipeline start; a failure here means no page work begins.
func (c Config) Validate() error {
    if c.PDF.DPI <= 0 {
        return &ValidationError{Field: "pdf.dpi", Message: fmt.Sprintf("must be positive, got %d", c.PDF.DPI)}
    }
    if c.PDF.ColorMode != "rgb" && c.PDF.ColorMode != "gray" {
        return &ValidationError{Field: "pdf.color_mode", Message: fmt.Sprintf("must be rgb or gray, got %q", c.PDF.ColorMode)}
    }
    if c.Worker.Concurrency <= 0 {
        return &ValidationError{Field: "worker.concurrency", Message: fmt.Sprintf("must be positive, got %d", c.Worker.Concurrency)}
    }

    if c.Blank.VarianceThreshold < 0 {
        return &ValidationError{Field: "blank_detection.variance_threshold", Message: fmt.Sprintf("must be >= 0, got %g", c.Blank.VarianceThreshold)}
    }
    if c.Blank.EdgeThreshold < 0 {
        return &ValidationError{Field: "blank_detection.edge_threshold", Message: fmt.Sprintf("must be >= 0, got %d", c.Blank.EdgeThreshold)}
    }
    if c.Blank.WhitePixelRatio <= 0 || c.Blank.WhitePixelRatio > 1 {
        return &ValidationError{Field: "blank_detection.white_pixel_ratio", Message: fmt.Sprintf("must be in (0,1], got %g", c.Blank.WhitePixelRatio)}
    }

    if c.Split.Enabled {
        if c.Split.MinConfidence < 0 || c.Split.MinConfidence > 100 {
            return &ValidationError{Field: "report_splitting.min_confidence", Message: fmt.Sprintf("must be in [0,100], got %g", c.Split.MinConfidence)}
        }
        r := c.Split.HeaderRegion
        if r.X1 < 0 || r.Y1 < 0 || r.X2 > 1 || r.Y2 > 1 || r.X1 >= r.X2 || r.Y1 >= r.Y2 {
            return &ValidationError{Field: "report_splitting.header_detection_region", Message: fmt.Sprintf("ratios must satisfy 0 <= x1 < x2 <= 1 and 0 <= y1 < y2 <= 1, got (%g,%g,%g,%g)", r.X1, r.Y1, r.X2, r.Y2)}
        }
        if c.Split.UseOCR && len(c.Split.HeaderKeywords) == 0 {
            return &ValidationError{Field: "report_splitting.header_keywords", Message: "at least one keyword required when OCR splitting is enabled"}
        }
    }

    if c.Dedup.Enabled {
        if !hashAlgorithms[c.Dedup.HashAlgorithm] {
            return &ValidationError{Field: "duplicate_detection.hash_algorithm", Message: fmt.Sprintf("unsupported algorithm %q (average_hash, phash, dhash, whash)", c.Dedup.HashAlgorithm)}
        }
        if c.Dedup.HashSize <= 0 {
            return &ValidationError{Field: "duplicate_detection.hash_size", Message: fmt.Sprintf("must be positive, got %d", c.Dedup.HashSize)}
        }
        if c.Dedup.HashAlgorithm == "whash" && c.Dedup.HashSize&(c.Dedup.HashSize-1) != 0 {
            return &ValidationError{Field: "duplicate_detection.hash_size", Message: fmt.Sprintf("whash requires a power-of-two grid, got %d", c.Dedup.HashSize)}
        }
        if c.Dedup.SimilarityThreshold < 0 || c.Dedup.SimilarityThreshold > 1 {
            return &ValidationError{Field: "duplicate_detection.similarity_threshold", Message: fmt.Sprintf("must be in [0,1], got %g", c.Dedup.SimilarityThreshold)}
        }
        if c.Dedup.HammingDistanceThreshold < 0 {
            return &ValidationError{Field: "duplicate_detection.hamming_distance_threshold", Message: fmt.Sprintf("must be >= 0, got %d", c.Dedup.HammingDistanceThreshold)}
        }
    }

    switch c.Output.Format {
    case "pdf", "images", "both":
    default:
        return &ValidationError{Field: "file_management.output_format", Message: fmt.Sprintf("must be pdf, images or both, got %q", c.Output.Format)}
    }

    return nil
}
