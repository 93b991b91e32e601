package main

import (
    "context"
    "flag"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"

    "github.com/google/uuid"
    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"

    cfgpkg "github.com/local/scancleaner/internal/config"
    logpkg "github.com/local/scancleaner/internal/logger"
    "github.com/local/scancleaner/internal/metrics"
    "github.com/local/scancleaner/internal/ocr"
    "github.com/local/scancleaner/internal/output"
    "github.com/local/scancleaner/internal/pagesource"
    "github.com/local/scancleaner/internal/pipeline"
)

func main() {
    _ = godotenv.Load()

    input := flag.String("input", "", "input PDF: path, file://, http(s):// or s3://bucket/key")
    flag.Parse()
    if *input == "" && flag.NArg() > 0 {
        *input = flag.Arg(0)
    }
    if *input == "" {
        fmt.Fprintln(os.Stderr, "usage: scancleaner [-input] <pdf-ref>")
        os.Exit(2)
    }

    cfg := cfgpkg.FromEnv()

    // Init logging
    _ = logpkg.Init(logpkg.Options{
        Level: cfg.Logging.Level,
        Pretty: cfg.Logging.Pretty,
        File: cfg.Logging.File,
        MaxSizeMB: cfg.Logging.MaxSizeMB,
        MaxBackups: cfg.Logging.MaxBackups,
        MaxAgeDays: cfg.Logging.MaxAgeDays,
        Compress: cfg.Logging.Compress,
        SendToAxiom: cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey: cfg.Axiom.APIKey,
        AxiomOrgID: cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush: cfg.Axiom.FlushInterval,
    })
    defer logpkg.Close()

    if err := cfg.Validate(); err != nil {
        log.Fatal().Err(err).Msg("invalid configuration")
    }

    // Optional Prometheus listener
    if cfg.Metrics.Addr != "" {
        metrics.Init()
        go func() {
            mux := http.NewServeMux()
            mux.Handle("/metrics", metrics.Handler())
            log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics listening")
            if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
                log.Error().Err(err).Msg("metrics server error")
            }
        }()
    }

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    // OCR is optional: a broken tesseract install degrades boundary
    // detection to the pixel heuristic.
    var engine ocr.Engine
    if cfg.Split.Enabled && cfg.Split.UseOCR {
        t, err := ocr.NewTesseract(cfg.Split.OCRLanguage)
        if err != nil {
            log.Warn().Err(err).Msg("ocr unavailable, continuing without it")
        } else {
            engine = t
            defer t.Close()
        }
    }

    runID := uuid.NewString()
    log.Info().Str("run_id", runID).Str("input", *input).Msg("starting run")

    src, err := pagesource.Resolve(ctx, *input)
    if err != nil {
        log.Fatal().Err(err).Msg("resolve input")
    }
    defer src.Close()

    pages, err := pagesource.Rasterize(src, cfg.PDF, cfg.Split.HeaderRegion)
    if err != nil {
        log.Fatal().Err(err).Msg("rasterize input")
    }

    res, err := pipeline.Run(ctx, pages, cfg, engine)
    if err != nil {
        log.Fatal().Err(err).Msg("pipeline failed")
    }

    var uploader *output.Uploader
    if cfg.Output.S3Bucket != "" {
        uploader, err = output.NewUploader(ctx)
        if err != nil {
            log.Fatal().Err(err).Msg("init s3 uploader")
        }
    }
    writer := output.NewWriter(cfg.Output, uploader)
    manifest, err := writer.Write(ctx, runID, res.Kept, res)
    if err != nil {
        log.Fatal().Err(err).Msg("write outputs")
    }

    log.Info().
        Str("run_id", runID).
        Str("dir", manifest.Dir).
        Int("files", len(manifest.Files)).
        Int("reports", len(res.Kept)).
        Int("blank_pages", res.Stats.BlankPages).
        Int("duplicates", res.Stats.Duplicates).
        Msg("run complete")
    fmt.Printf("wrote %d reports to %s\n", len(res.Kept), manifest.Dir)
}
