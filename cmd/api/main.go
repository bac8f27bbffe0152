// Package main implements the retrieval API server: it wires the config
// loader, vector/graph services, modality registry and handlers, planner,
// orchestrator, severity engine, and incident builder into one HTTP process.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentineleng/sentinel/engine/graph"
	"github.com/sentineleng/sentinel/engine/incident"
	"github.com/sentineleng/sentinel/engine/memory"
	"github.com/sentineleng/sentinel/engine/modality"
	"github.com/sentineleng/sentinel/engine/orchestrator"
	"github.com/sentineleng/sentinel/engine/planexec"
	"github.com/sentineleng/sentinel/engine/planner"
	"github.com/sentineleng/sentinel/engine/registry"
	"github.com/sentineleng/sentinel/engine/severity"
	"github.com/sentineleng/sentinel/engine/vector"
	"github.com/sentineleng/sentinel/internal/config"
	"github.com/sentineleng/sentinel/internal/wiring"
	"github.com/sentineleng/sentinel/pkg/metrics"
	"github.com/sentineleng/sentinel/pkg/mid"
	"github.com/sentineleng/sentinel/pkg/resilience"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	configPath := flag.String("config", envOr("SENTINEL_CONFIG", ""), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dataDir := envOr("DATA_DIR", "/tmp/sentinel-data")
	port := envOr("PORT", "8080")

	met := metrics.New()
	met.CollectRuntime("sentinel_api", 15*time.Second)

	httpClient := buildHTTPClient(cfg)

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
	if graphSvc.IsConfigured() {
		logger.Info("graph service connected", "uri", cfg.Graph.URI)
	} else {
		logger.Warn("graph service disabled, missing credentials")
	}

	embedder := vector.NewHTTPEmbedder(
		envOr("EMBEDDING_URL", cfg.VectorDB.URL),
		envOr("EMBEDDING_API_KEY", cfg.VectorDB.APIKey),
		cfg.VectorDB.EmbeddingModel,
		httpClient,
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
	}, embedder, httpClient, logger)
	if vectorSvc.IsConfigured() {
		logger.Info("vector service connected", "collection", cfg.VectorDB.Collection)
	} else {
		logger.Warn("vector service disabled, missing url or embedder")
	}

	nc := maybeNATSConn(logger)
	if nc != nil {
		defer nc.Close()
	}
	handlers, modCfgs := wiring.BuildHandlers(cfg, vectorSvc, graphSvc, nc, logger)
	reg := registry.New(dataDir+"/state/search_registry.json", handlers, modCfgs)

	plannerRules := wiring.BuildPlannerRules(cfg)
	p := planner.New(plannerRules, reg)

	traceStore := incident.NewTraceStore(dataDir+"/state/query_traces.jsonl", logger)
	hc := wiring.NewHandlerConfig(cfg)
	orch := orchestrator.New(p, reg, hc, traceStore)

	sevEngine := severity.New(severity.Config{
		Weights: severity.Weights{Chat: 0.2, SCM: 0.2, Doc: 0.2, Graph: 0.2, Semantic: 0.2},
	}, &severity.GraphSource{G: graphSvc}, &severity.GraphSource{G: graphSvc}, &severity.GraphSource{G: graphSvc}, &severity.VectorSource{V: vectorSvc})
	incidentBuilder := incident.NewBuilder(sevEngine)

	executor := planexec.New(wiring.NewSearchToolInvoker(reg), planexec.Config{
		Contracts:        wiring.BuildToolContracts(reg),
		MaxParallelSteps: cfg.Performance.MaxParallelSteps,
		Log:              logger,
	})

	memStore := memory.NewFileStore(dataDir + "/user_memory")
	var sessionStore *memory.SessionStore
	if rdb := maybeRedisClient(); rdb != nil {
		defer rdb.Close()
		sessionStore = memory.NewSessionStore(rdb, memory.DefaultSessionTTL)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /metrics", met.Handler())
	mux.HandleFunc("POST /api/query", handleQuery(orch, incidentBuilder, logger))
	mux.HandleFunc("POST /api/plan/execute", handlePlanExecute(executor))
	mux.HandleFunc("GET /api/registry/status", handleRegistryStatus(reg))
	mux.HandleFunc("GET /api/memory/{user_id}/profile", handleMemoryProfile(memStore, logger))
	mux.HandleFunc("POST /api/memory/{user_id}/memories", handleMemoryAppend(memStore, logger))
	if sessionStore != nil {
		mux.HandleFunc("GET /api/sessions/{session_id}", handleSessionLoad(sessionStore, logger))
		mux.HandleFunc("PUT /api/sessions/{session_id}", handleSessionSave(sessionStore, logger))
	}

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(envOr("CORS_ORIGIN", "*")),
	)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// buildHTTPClient returns the shared pooled client when connection pooling
// is enabled, otherwise the stdlib default — mirroring the teacher's
// pattern of treating pooling as an optional performance toggle rather
// than a hard requirement.
func buildHTTPClient(cfg *config.Config) *http.Client {
	if !cfg.Performance.ConnectionPooling {
		return http.DefaultClient
	}
	conn := resilience.DefaultConnPool().Get(resilience.PoolConfig{
		Credential: cfg.VectorDB.APIKey,
		Model:      cfg.VectorDB.EmbeddingModel,
	})
	return conn.Client
}

// maybeRedisClient builds a Redis client for session storage if REDIS_ADDR
// is set; session support is optional, not every deployment runs Redis.
func maybeRedisClient() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr})
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

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// QueryRequest is the JSON body for POST /api/query.
type QueryRequest struct {
	Question string   `json:"question"`
	Intent   string   `json:"intent,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// QueryResponse is the JSON response for POST /api/query.
type QueryResponse struct {
	Results        []modality.Result       `json:"results"`
	ModalitiesUsed []modality.ID           `json:"modalities_used"`
	Incident       incident.IncidentCandidate `json:"incident"`
}

func handleQuery(orch *orchestrator.Orchestrator, builder *incident.Builder, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Question == "" {
			http.Error(w, `{"error":"question is required"}`, http.StatusBadRequest)
			return
		}

		var hints *planner.Hints
		if req.Intent != "" || len(req.Keywords) > 0 {
			hints = &planner.Hints{Intent: planner.Intent(req.Intent), Keywords: req.Keywords}
		}

		resp := orch.Run(r.Context(), req.Question, hints)

		candidate, err := builder.Build(r.Context(), reasoningResultFromResponse(req.Question, resp))
		if err != nil {
			logger.Error("incident build failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(QueryResponse{
			Results:        resp.Results,
			ModalitiesUsed: resp.ModalitiesUsed,
			Incident:       candidate,
		})
	}
}

// reasoningResultFromResponse adapts an orchestrator fanout's fused
// results into the Incident Builder's input shape: each result becomes one
// piece of evidence, with components pulled from any "components" metadata
// key a handler attached.
func reasoningResultFromResponse(query string, resp orchestrator.Response) incident.ReasoningResult {
	evidence := make([]incident.Evidence, 0, len(resp.Results))
	var components []string
	seenComponents := map[string]bool{}

	for _, res := range resp.Results {
		evidence = append(evidence, incident.Evidence{
			EvidenceID: res.ChunkID,
			Source:     string(res.Source),
			Title:      res.Title,
			URL:        res.URL,
			Metadata:   res.Metadata,
		})
		if cs, ok := res.Metadata["components"].([]string); ok {
			for _, c := range cs {
				if !seenComponents[c] {
					seenComponents[c] = true
					components = append(components, c)
				}
			}
		}
	}

	summary := ""
	if len(resp.Results) > 0 {
		summary = resp.Results[0].Text
	}

	return incident.ReasoningResult{
		Query:          query,
		Summary:        summary,
		Evidence:       evidence,
		Components:     components,
		ModalitiesUsed: resp.ModalitiesUsed,
	}
}

// PlanExecuteRequest is the JSON body for POST /api/plan/execute. Context is
// accepted but not yet threaded into parameter resolution — the spec leaves
// its shape and use unspecified beyond "optional additional info".
type PlanExecuteRequest struct {
	Goal    string          `json:"goal"`
	Steps   []planexec.Step `json:"steps"`
	Context map[string]any  `json:"context,omitempty"`
}

func handlePlanExecute(executor *planexec.Executor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PlanExecuteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if len(req.Steps) == 0 {
			http.Error(w, `{"error":"steps is required"}`, http.StatusBadRequest)
			return
		}

		result := executor.Execute(r.Context(), planexec.Plan{Goal: req.Goal, Steps: req.Steps})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

// RegistryStatusEntry reports one modality's enablement and ingest state.
type RegistryStatusEntry struct {
	ModalityID    string     `json:"modality_id"`
	Enabled       bool       `json:"enabled"`
	NeedsReindex  bool       `json:"needs_reindex"`
	LastIndexedAt *time.Time `json:"last_indexed_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

func handleRegistryStatus(reg *registry.Registry) http.HandlerFunc {
	ids := []modality.ID{modality.Chat, modality.SCM, modality.Docs, modality.DocIssues, modality.Video, modality.Files, modality.WebFallback}
	return func(w http.ResponseWriter, _ *http.Request) {
		out := make([]RegistryStatusEntry, 0, len(ids))
		for _, id := range ids {
			st, _ := reg.State(id)
			out = append(out, RegistryStatusEntry{
				ModalityID:    string(id),
				Enabled:       reg.IsEnabled(id),
				NeedsReindex:  reg.NeedsReindex(id),
				LastIndexedAt: st.LastIndexedAt,
				LastError:     st.LastError,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func handleMemoryProfile(store *memory.FileStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("user_id")
		profile, err := store.LoadProfile(r.Context(), userID)
		if err != nil {
			logger.Error("memory profile load failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		memories, err := store.LoadMemories(r.Context(), userID)
		if err != nil {
			logger.Error("memory load failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"profile": profile, "memories": memories})
	}
}

// MemoryAppendRequest is the JSON body for POST /api/memory/{user_id}/memories.
type MemoryAppendRequest struct {
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`
}

func handleMemoryAppend(store *memory.FileStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("user_id")
		var req MemoryAppendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Content == "" {
			http.Error(w, `{"error":"content is required"}`, http.StatusBadRequest)
			return
		}
		entry, err := store.AppendMemory(r.Context(), userID, req.Content, req.Category, req.Tags, nil)
		if err != nil {
			logger.Error("memory append failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entry)
	}
}

func handleSessionLoad(store *memory.SessionStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := store.Load(r.Context(), r.PathValue("session_id"))
		if err != nil {
			logger.Error("session load failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sess)
	}
}

func handleSessionSave(store *memory.SessionStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sess memory.Session
		if err := json.NewDecoder(r.Body).Decode(&sess); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		sess.SessionID = r.PathValue("session_id")
		if err := store.Save(r.Context(), sess); err != nil {
			logger.Error("session save failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
