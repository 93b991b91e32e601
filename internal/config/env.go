package config

import (
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/local/scancleaner/internal/page"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level      string
    Pretty     bool
    File       string
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// PDFConfig controls how source documents are rasterized into pages.
type PDFConfig struct {
    DPI       int
    ColorMode string // "rgb"|"gray"
}

// BlankConfig holds the blank-page classifier thresholds. Lowering
// VarianceThreshold/EdgeThreshold or raising WhitePixelRatio makes
// classification stricter (fewer pages called blank).
type BlankConfig struct {
    VarianceThreshold float64
    EdgeThreshold     int
    WhitePixelRatio   float64
    UseEdgeDetection  bool
}

// SplitConfig controls report-boundary detection.
type SplitConfig struct {
    Enabled        bool
    UseOCR         bool
    MinConfidence  float64
    HeaderKeywords []string
    HeaderRegion   page.Region
    OCRLanguage    string
    OCRTimeout     time.Duration
}

// DedupConfig controls duplicate detection over pages or reports.
type DedupConfig struct {
    Enabled                  bool
    HashAlgorithm            string
    HashSize                 int
    SimilarityThreshold      float64
    HammingDistanceThreshold int
    CompareFirstPageOnly     bool
}

// OutputConfig controls where and how surviving reports are written.
type OutputConfig struct {
    Dir             string
    Format          string // "pdf"|"images"|"both"
    NamingPattern   string
    IncludeMetadata bool
    S3Bucket        string
    S3Prefix        string
}

// WorkerConfig bounds per-page parallelism.
type WorkerConfig struct {
    Concurrency int
}

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
    Addr string
}

// Config is the top-level configuration.
type Config struct {
    Logging LoggingConfig
    Axiom   AxiomConfig
    PDF     PDFConfig
    Blank   BlankConfig
    Split   SplitConfig
    Dedup   DedupConfig
    Output  OutputConfig
    Worker  WorkerConfig
    Metrics MetricsConfig
}

// DefaultHeaderKeywords indicate a report header in OCR'd header text.
var DefaultHeaderKeywords = []string{
    "patient name",
    "patient id",
    "medical record",
    "report date",
    "hospital",
    "clinic",
}

// Default returns the built-in configuration.
func Default() Config {
    return Config{
        Logging: LoggingConfig{
            Level:      "info",
            Pretty:     false,
            File:       "logs/scancleaner.log",
            MaxSizeMB:  100,
            MaxBackups: 10,
            MaxAgeDays: 30,
            Compress:   true,
        },
        Axiom: AxiomConfig{
            Send:          false,
            Dataset:       "dev_scancleaner",
            FlushInterval: 10 * time.Second,
        },
        PDF: PDFConfig{
            DPI:       200,
            ColorMode: "rgb",
        },
        Blank: BlankConfig{
            VarianceThreshold: 100,
            EdgeThreshold:     50,
            WhitePixelRatio:   0.95,
            UseEdgeDetection:  true,
        },
        Split: SplitConfig{
            Enabled:        false,
            UseOCR:         true,
            MinConfidence:  60,
            HeaderKeywords: DefaultHeaderKeywords,
            HeaderRegion:   page.DefaultHeaderRegion,
            OCRLanguage:    "eng",
            OCRTimeout:     15 * time.Second,
        },
        Dedup: DedupConfig{
            Enabled:                  true,
            HashAlgorithm:            "phash",
            HashSize:                 8,
            SimilarityThreshold:      0.95,
            HammingDistanceThreshold: 5,
            CompareFirstPageOnly:     false,
        },
        Output: OutputConfig{
            Dir:             "output",
            Format:          "pdf",
            NamingPattern:   "report_%04d",
            IncludeMetadata: true,
        },
        Worker: WorkerConfig{
            Concurrency: 4,
        },
    }
}

// FromEnv loads configuration from the environment, merging partial
// overrides onto the defaults.
func FromEnv() Config {
    cfg := Default()

    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", cfg.Logging.Level),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", cfg.Logging.File),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", ""), cfg.Logging.MaxSizeMB),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", ""), cfg.Logging.MaxBackups),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", ""), cfg.Logging.MaxAgeDays),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_scancleaner",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", ""), cfg.Axiom.FlushInterval),
    }

    cfg.PDF.DPI = parseInt(getEnv("PDF_DPI", ""), cfg.PDF.DPI)
    cfg.PDF.ColorMode = strings.ToLower(getEnv("PDF_COLOR_MODE", cfg.PDF.ColorMode))

    cfg.Blank = BlankConfig{
        VarianceThreshold: parseFloat(getEnv("VARIANCE_THRESHOLD", ""), cfg.Blank.VarianceThreshold),
        EdgeThreshold:     parseInt(getEnv("EDGE_THRESHOLD", ""), cfg.Blank.EdgeThreshold),
        WhitePixelRatio:   parseFloat(getEnv("WHITE_PIXEL_RATIO", ""), cfg.Blank.WhitePixelRatio),
        UseEdgeDetection:  parseBool(getEnv("USE_EDGE_DETECTION", "true")),
    }

    cfg.Split = SplitConfig{
        Enabled:        parseBool(getEnv("ENABLE_REPORT_SPLITTING", "0")),
        UseOCR:         parseBool(getEnv("USE_OCR", "true")),
        MinConfidence:  parseFloat(getEnv("MIN_CONFIDENCE", ""), cfg.Split.MinConfidence),
        HeaderKeywords: parseList(getEnv("HEADER_KEYWORDS", ""), cfg.Split.HeaderKeywords),
        HeaderRegion:   parseRegion(getEnv("HEADER_DETECTION_REGION", ""), cfg.Split.HeaderRegion),
        OCRLanguage:    getEnv("OCR_LANGUAGE", cfg.Split.OCRLanguage),
        OCRTimeout:     parseDuration(getEnv("OCR_TIMEOUT", ""), cfg.Split.OCRTimeout),
    }

    cfg.Dedup = DedupConfig{
        Enabled:                  parseBool(getEnv("ENABLE_DUPLICATE_DETECTION", "true")),
        HashAlgorithm:            strings.ToLower(getEnv("HASH_ALGORITHM", cfg.Dedup.HashAlgorithm)),
        HashSize:                 parseInt(getEnv("HASH_SIZE", ""), cfg.Dedup.HashSize),
        SimilarityThreshold:      parseFloat(getEnv("SIMILARITY_THRESHOLD", ""), cfg.Dedup.SimilarityThreshold),
        HammingDistanceThreshold: parseInt(getEnv("HAMMING_DISTANCE_THRESHOLD", ""), cfg.Dedup.HammingDistanceThreshold),
        CompareFirstPageOnly:     parseBool(getEnv("COMPARE_FIRST_PAGE_ONLY", "0")),
    }

    cfg.Output = OutputConfig{
        Dir:             getEnv("OUTPUT_DIR", cfg.Output.Dir),
        Format:          strings.ToLower(getEnv("OUTPUT_FORMAT", cfg.Output.Format)),
        NamingPattern:   getEnv("NAMING_PATTERN", cfg.Output.NamingPattern),
        IncludeMetadata: parseBool(getEnv("INCLUDE_METADATA", "true")),
        S3Bucket:        getEnv("RESULT_S3_BUCKET", ""),
        S3Prefix:        getEnv("RESULT_S3_PREFIX", "results"),
    }

    cfg.Worker.Concurrency = parseInt(getEnv("WORKER_CONCURRENCY", ""), cfg.Worker.Concurrency)
    cfg.Metrics.Addr = getEnv("METRICS_ADDR", "")

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseFloat(s string, def float64) float64 {
    if s == "" { return def }
    if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

// parseList splits a comma-separated value, trimming whitespace.
func parseList(s string, def []string) []string {
    if s == "" { return def }
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        if t := strings.TrimSpace(p); t != "" {
            out = append(out, t)
        }
    }
    if len(out) == 0 { return def }
    return out
}

// parseRegion parses "x1,y1,x2,y2" ratio tuples, e.g. "0,0,1.0,0.2".
func parseRegion(s string, def page.Region) page.Region {
    if s == "" { return def }
    parts := strings.Split(s, ",")
    if len(parts) != 4 { return def }
    vals := make([]float64, 4)
    for i, p := range parts {
        f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
        if err != nil { return def }
        vals[i] = f
    }
    return page.Region{X1: vals[0], Y1: vals[1], X2: vals[2], Y2: vals[3]}
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
