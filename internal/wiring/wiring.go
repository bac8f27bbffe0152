// Package wiring translates the loaded configuration into the concrete
// modality handlers, registry config, and planner rules that both
// cmd/api (query-serving) and cmd/ingest (ingestion-driving) build their
// registries from. Keeping this in one package means the two binaries
// can never disagree about which modality a config entry maps to.
package wiring

import (
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/sentineleng/sentinel/engine/graph"
	"github.com/sentineleng/sentinel/engine/modality"
	"github.com/sentineleng/sentinel/engine/planner"
	"github.com/sentineleng/sentinel/engine/registry"
	"github.com/sentineleng/sentinel/engine/scraper"
	"github.com/sentineleng/sentinel/engine/vector"
	"github.com/sentineleng/sentinel/internal/config"
)

// BuildHandlers constructs one handler per modality, plus the registry's
// per-modality enablement config. Chat and SCM are constructed with a nil
// ingest-source adapter — no handler needs one to answer queries, since
// CanQuery never checks h.source; only CanIngest() does, so those two
// modalities stay ingest-disabled until a concrete source adapter lands.
// Video gets a real scraper.YouTubeVideoSource whenever a
// youtube_api_key is configured in its scope. nc is optional: a nil
// connection leaves the SCM and video handlers' paging notifications as
// no-ops, so callers that never set NATS_URL are unaffected.
func BuildHandlers(cfg *config.Config, vec *vector.Service, g *graph.Service, nc *nats.Conn, log *slog.Logger) (map[modality.ID]modality.Handler, map[modality.ID]registry.ModalityConfig) {
	mc := cfg.Search.Modalities
	notifier := modality.NewPagingNotifier(nc)

	scmHandler := modality.NewSCMHandler(modality.SCMConfig{
		Enabled:    EnabledOf(mc, "scm", cfg.Search.Enabled),
		Weight:     WeightOf(mc, "scm", 1.0),
		TimeoutMs:  TimeoutOf(mc, "scm", cfg.Search.Defaults.TimeoutMsPerModality),
		MaxResults: MaxResultsOf(mc, "scm", cfg.Search.Defaults.MaxResultsPerModality),
		Repos:      ScopeStrings(mc, "scm", "repos"),
	}, nil, vec, g, log)
	scmHandler.SetPagingNotifier(notifier)

	var videoSource modality.VideoSource
	if apiKey := ScopeString(mc, "video", "youtube_api_key"); apiKey != "" {
		videoSource = scraper.NewYouTubeVideoSource(apiKey)
	}
	videoHandler := modality.NewVideoHandler(modality.VideoConfig{
		Enabled:    EnabledOf(mc, "video", cfg.Search.Enabled),
		Weight:     WeightOf(mc, "video", 1.0),
		TimeoutMs:  TimeoutOf(mc, "video", cfg.Search.Defaults.TimeoutMsPerModality),
		MaxResults: MaxResultsOf(mc, "video", cfg.Search.Defaults.MaxResultsPerModality),
		VideoIDs:   ScopeStrings(mc, "video", "video_ids"),
	}, videoSource, vec, g, log)
	videoHandler.SetPagingNotifier(notifier)

	handlers := map[modality.ID]modality.Handler{
		modality.Chat: modality.NewChatHandler(modality.ChatConfig{
			Enabled:    EnabledOf(mc, "chat", cfg.Search.Enabled),
			Weight:     WeightOf(mc, "chat", 1.0),
			TimeoutMs:  TimeoutOf(mc, "chat", cfg.Search.Defaults.TimeoutMsPerModality),
			MaxResults: MaxResultsOf(mc, "chat", cfg.Search.Defaults.MaxResultsPerModality),
			Channels:   ScopeStrings(mc, "chat", "channels"),
		}, nil, vec, g, log),

		modality.SCM: scmHandler,

		modality.Docs: modality.NewDocsHandler(modality.FileConfig{
			Enabled:    EnabledOf(mc, "docs", cfg.Search.Enabled),
			Weight:     WeightOf(mc, "docs", 1.0),
			TimeoutMs:  TimeoutOf(mc, "docs", cfg.Search.Defaults.TimeoutMsPerModality),
			MaxResults: MaxResultsOf(mc, "docs", cfg.Search.Defaults.MaxResultsPerModality),
			Roots:      ScopeStrings(mc, "docs", "roots"),
		}, vec, g, log),

		modality.Files: modality.NewFilesHandler(modality.FileConfig{
			Enabled:    EnabledOf(mc, "files", cfg.Search.Enabled),
			Weight:     WeightOf(mc, "files", 1.0),
			TimeoutMs:  TimeoutOf(mc, "files", cfg.Search.Defaults.TimeoutMsPerModality),
			MaxResults: MaxResultsOf(mc, "files", cfg.Search.Defaults.MaxResultsPerModality),
			Roots:      ScopeStrings(mc, "files", "roots"),
		}, vec, g, log),

		modality.DocIssues: modality.NewDocIssuesHandler(modality.DocIssuesConfig{
			Enabled:    EnabledOf(mc, "doc_issues", cfg.Search.Enabled),
			Weight:     WeightOf(mc, "doc_issues", 1.0),
			MaxResults: MaxResultsOf(mc, "doc_issues", cfg.Search.Defaults.MaxResultsPerModality),
			StatePath:  "data/state/doc_issues.json",
		}, log),

		modality.Video: videoHandler,

		modality.WebFallback: modality.NewWebFallbackHandler(modality.WebFallbackConfig{
			Enabled:    FallbackEnabledOf(mc, "web_fallback"),
			Weight:     cfg.Search.Defaults.WebFallbackWeight,
			TimeoutMs:  TimeoutOf(mc, "web_fallback", cfg.Search.Defaults.TimeoutMsPerModality),
			MaxResults: MaxResultsOf(mc, "web_fallback", cfg.Search.Defaults.MaxResultsPerModality),
			SearchURL:  ScopeString(mc, "web_fallback", "search_url"),
		}),
	}

	modCfgs := map[modality.ID]registry.ModalityConfig{
		modality.Chat:        {Enabled: EnabledOf(mc, "chat", cfg.Search.Enabled), Weight: WeightOf(mc, "chat", 1.0), TimeoutMs: TimeoutOf(mc, "chat", cfg.Search.Defaults.TimeoutMsPerModality), MaxResults: MaxResultsOf(mc, "chat", cfg.Search.Defaults.MaxResultsPerModality)},
		modality.SCM:         {Enabled: EnabledOf(mc, "scm", cfg.Search.Enabled), Weight: WeightOf(mc, "scm", 1.0), TimeoutMs: TimeoutOf(mc, "scm", cfg.Search.Defaults.TimeoutMsPerModality), MaxResults: MaxResultsOf(mc, "scm", cfg.Search.Defaults.MaxResultsPerModality)},
		modality.Docs:        {Enabled: EnabledOf(mc, "docs", cfg.Search.Enabled), Weight: WeightOf(mc, "docs", 1.0), TimeoutMs: TimeoutOf(mc, "docs", cfg.Search.Defaults.TimeoutMsPerModality), MaxResults: MaxResultsOf(mc, "docs", cfg.Search.Defaults.MaxResultsPerModality)},
		modality.Files:       {Enabled: EnabledOf(mc, "files", cfg.Search.Enabled), Weight: WeightOf(mc, "files", 1.0), TimeoutMs: TimeoutOf(mc, "files", cfg.Search.Defaults.TimeoutMsPerModality), MaxResults: MaxResultsOf(mc, "files", cfg.Search.Defaults.MaxResultsPerModality)},
		modality.DocIssues:   {Enabled: EnabledOf(mc, "doc_issues", cfg.Search.Enabled), Weight: WeightOf(mc, "doc_issues", 1.0), MaxResults: MaxResultsOf(mc, "doc_issues", cfg.Search.Defaults.MaxResultsPerModality)},
		modality.Video:       {Enabled: EnabledOf(mc, "video", cfg.Search.Enabled), Weight: WeightOf(mc, "video", 1.0), TimeoutMs: TimeoutOf(mc, "video", cfg.Search.Defaults.TimeoutMsPerModality), MaxResults: MaxResultsOf(mc, "video", cfg.Search.Defaults.MaxResultsPerModality)},
		modality.WebFallback: {Enabled: FallbackEnabledOf(mc, "web_fallback"), FallbackOnly: true, Weight: cfg.Search.Defaults.WebFallbackWeight, TimeoutMs: TimeoutOf(mc, "web_fallback", cfg.Search.Defaults.TimeoutMsPerModality), MaxResults: MaxResultsOf(mc, "web_fallback", cfg.Search.Defaults.MaxResultsPerModality)},
	}

	return handlers, modCfgs
}

// BuildPlannerRules converts the declarative planner rules from config
// into planner.Rule values, mapping each rule's Include string list onto
// modality.ID.
func BuildPlannerRules(cfg *config.Config) []planner.Rule {
	rules := make([]planner.Rule, 0, len(cfg.Search.Planner.Rules))
	for _, r := range cfg.Search.Planner.Rules {
		include := make([]modality.ID, 0, len(r.Include))
		for _, id := range r.Include {
			include = append(include, modality.ID(id))
		}
		rules = append(rules, planner.Rule{Keywords: r.Keywords, Include: include})
	}
	return rules
}

// HandlerConfig implements the orchestrator's handlerConfig collaborator
// over the loaded search config.
type HandlerConfig struct {
	mc       map[string]config.ModalityConfig
	defaults config.SearchDefaults
}

func NewHandlerConfig(cfg *config.Config) *HandlerConfig {
	return &HandlerConfig{mc: cfg.Search.Modalities, defaults: cfg.Search.Defaults}
}

func (h *HandlerConfig) TimeoutMs(id modality.ID) int {
	return TimeoutOf(h.mc, string(id), h.defaults.TimeoutMsPerModality)
}

func (h *HandlerConfig) MaxResults(id modality.ID) int {
	return MaxResultsOf(h.mc, string(id), h.defaults.MaxResultsPerModality)
}

func EnabledOf(mc map[string]config.ModalityConfig, id string, searchEnabled bool) bool {
	if !searchEnabled {
		return false
	}
	m, ok := mc[id]
	if !ok {
		return true // absent entries default to enabled when search itself is on
	}
	return m.Enabled
}

func FallbackEnabledOf(mc map[string]config.ModalityConfig, id string) bool {
	m, ok := mc[id]
	return ok && m.Enabled
}

func WeightOf(mc map[string]config.ModalityConfig, id string, fallback float64) float64 {
	if m, ok := mc[id]; ok && m.Weight != 0 {
		return m.Weight
	}
	return fallback
}

func TimeoutOf(mc map[string]config.ModalityConfig, id string, fallback int) int {
	if m, ok := mc[id]; ok && m.TimeoutMs != 0 {
		return m.TimeoutMs
	}
	return fallback
}

func MaxResultsOf(mc map[string]config.ModalityConfig, id string, fallback int) int {
	if m, ok := mc[id]; ok && m.MaxResults != 0 {
		return m.MaxResults
	}
	return fallback
}

func ScopeStrings(mc map[string]config.ModalityConfig, id, key string) []string {
	m, ok := mc[id]
	if !ok || m.Scope == nil {
		return nil
	}
	raw, ok := m.Scope[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func ScopeString(mc map[string]config.ModalityConfig, id, key string) string {
	m, ok := mc[id]
	if !ok || m.Scope == nil {
		return ""
	}
	if s, ok := m.Scope[key].(string); ok {
		return s
	}
	return ""
}
