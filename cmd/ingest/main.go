// Command ingest drives a scheduled re-indexing pass across every modality
// handler that reports CanIngest, on a fixed interval, persisting
// per-modality state and exposing Prometheus-style metrics for each run.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sentineleng/sentinel/engine/graph"
	"github.com/sentineleng/sentinel/engine/registry"
	"github.com/sentineleng/sentinel/engine/vector"
	"github.com/sentineleng/sentinel/internal/config"
	"github.com/sentineleng/sentinel/internal/wiring"
	"github.com/sentineleng/sentinel/pkg/metrics"
)

var met = metrics.New()

var (
	mRunsTotal     = met.Counter("sentinel_ingest_runs_total", "Total scheduled ingestion sweeps")
	mDocsTotal     = func(mod string) *metrics.Counter { return met.Counter(metrics.WithLabels("sentinel_ingest_chunks_written_total", "modality", mod), "Chunks written per modality") }
	mItemsSeen     = func(mod string) *metrics.Counter { return met.Counter(metrics.WithLabels("sentinel_ingest_items_seen_total", "modality", mod), "Items seen per modality") }
	mErrorsTotal   = func(mod string) *metrics.Counter { return met.Counter(metrics.WithLabels("sentinel_ingest_errors_total", "modality", mod), "Ingest errors per modality") }
	mHandlerDur    = func(mod string) *metrics.Histogram { return met.Histogram(metrics.WithLabels("sentinel_ingest_modality_duration_seconds", "modality", mod), "Per-modality ingest duration", nil) }
	mActiveModalities = met.Gauge("sentinel_ingest_active_modalities", "Modalities currently ingesting")
	mLastRun       = met.Gauge("sentinel_ingest_last_run_timestamp", "Epoch of the last completed sweep")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	configPath := flag.String("config", envOr("SENTINEL_CONFIG", ""), "path to a YAML config file")
	interval := flag.Duration("interval", 5*time.Minute, "ingestion sweep interval")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, *interval, logger); err != nil {
		logger.Error("ingest worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, interval time.Duration, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dataDir := envOr("DATA_DIR", "/tmp/sentinel-data")
	met.CollectRuntime("sentinel_ingest", 15*time.Second)
	met.ServeAsync(9091)

	graphSvc, err := graph.New(ctx, graph.Config{
		URI:      cfg.Graph.URI,
		Username: cfg.Graph.Username,
		Password: cfg.Graph.Password,
		Database: cfg.Graph.Database,
	}, logger)
	if err != nil {
		return err
	}
	defer graphSvc.Close(ctx)

	embedder := vector.NewHTTPEmbedder(
		envOr("EMBEDDING_URL", cfg.VectorDB.URL),
		envOr("EMBEDDING_API_KEY", cfg.VectorDB.APIKey),
		cfg.VectorDB.EmbeddingModel,
		nil,
	)
	vectorSvc := vector.New(vector.Config{
		Enabled:        cfg.VectorDB.Enabled,
		URL:            cfg.VectorDB.URL,
		APIKey:         cfg.VectorDB.APIKey,
		Collection:     cfg.VectorDB.Collection,
		Dimension:      cfg.VectorDB.Dimension,
		EmbeddingModel: cfg.VectorDB.EmbeddingModel,
		MinScore:       cfg.VectorDB.MinScore,
		DefaultTopK:    cfg.VectorDB.DefaultTopK,
	}, embedder, nil, logger)

	nc := maybeNATSConn(logger)
	if nc != nil {
		defer nc.Close()
	}
	handlers, modCfgs := wiring.BuildHandlers(cfg, vectorSvc, graphSvc, nc, logger)
	reg := registry.New(dataDir+"/state/search_registry.json", handlers, modCfgs)

	logger.Info("ingest worker starting", "interval", interval.String())

	sweep(ctx, reg, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
			sweep(ctx, reg, logger)
		}
	}
}

// maybeNATSConn connects to NATS for paging-backpressure notifications if
// NATS_URL is set; without it the SCM and video handlers' paging notifier
// is a no-op.
func maybeNATSConn(logger *slog.Logger) *nats.Conn {
	url := os.Getenv("NATS_URL")
	if url == "" {
		return nil
	}
	nc, err := nats.Connect(url)
	if err != nil {
		logger.Warn("nats connection failed, paging notifications disabled", "error", err)
		return nil
	}
	return nc
}

// sweep runs one ingestion pass across every handler the registry reports
// as ingest-ready, recording per-modality counts, errors, and state.
func sweep(ctx context.Context, reg *registry.Registry, logger *slog.Logger) {
	mRunsTotal.Inc()
	start := time.Now()

	handlers := reg.IterIngestionHandlers()
	mActiveModalities.Set(int64(len(handlers)))
	logger.Info("sweep starting", "modalities", len(handlers))

	for _, h := range handlers {
		id := h.ModalityID()
		modStart := time.Now()

		counts, err := h.Ingest(ctx, nil)

		mHandlerDur(string(id)).Since(modStart)
		mDocsTotal(string(id)).Add(int64(counts.ChunksWritten))
		mItemsSeen(string(id)).Add(int64(counts.ItemsSeen))
		if counts.Errors > 0 {
			mErrorsTotal(string(id)).Add(int64(counts.Errors))
		}

		now := time.Now()
		var lastIndexed *time.Time
		if err == nil {
			lastIndexed = &now
		}
		if updErr := reg.UpdateState(id, lastIndexed, err, map[string]any{
			"chunks_written": counts.ChunksWritten,
			"items_seen":     counts.ItemsSeen,
			"errors":         counts.Errors,
		}); updErr != nil {
			logger.Error("state update failed", "modality", id, "err", updErr)
		}

		if err != nil {
			mErrorsTotal(string(id)).Inc()
			logger.Error("modality ingest failed", "modality", id, "err", err)
			continue
		}
		logger.Info("modality ingest done", "modality", id, "chunks_written", counts.ChunksWritten, "items_seen", counts.ItemsSeen, "duration", time.Since(modStart).String())
	}

	mLastRun.Set(start.Unix())
	logger.Info("sweep complete", "duration", time.Since(start).String())
}
