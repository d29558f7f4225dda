package main

import (
	"fmt"
	"time"

	"github.com/vinayprograms/agentkit/credentials"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/telemetry"

	"github.com/vinayprograms/workbrief/internal/brief"
	"github.com/vinayprograms/workbrief/internal/config"
	"github.com/vinayprograms/workbrief/internal/coordinator"
	"github.com/vinayprograms/workbrief/internal/correlate"
	"github.com/vinayprograms/workbrief/internal/fetch"
	"github.com/vinayprograms/workbrief/internal/ids"
	"github.com/vinayprograms/workbrief/internal/store"
	"github.com/vinayprograms/workbrief/internal/synth"
	"github.com/vinayprograms/workbrief/internal/workers"
)

// runtime holds the wired pipeline and everything that must be closed.
type runtime struct {
	cfg         *config.Config
	creds       *credentials.Credentials
	provider    llm.Provider
	store       store.SessionStore
	telem       telemetry.Exporter
	coordinator *coordinator.Coordinator
	closers     []func()
}

func newRuntime(cfg *config.Config, creds *credentials.Credentials) (*runtime, error) {
	rt := &runtime{cfg: cfg, creds: creds}
	steps := []func() error{
		rt.setupTelemetry,
		rt.setupStore,
		rt.setupProvider,
		rt.setupCoordinator,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			rt.Close()
			return nil, err
		}
	}
	return rt, nil
}

func (rt *runtime) addCloser(fn func()) {
	rt.closers = append(rt.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// setupTelemetry creates the telemetry exporter.
func (rt *runtime) setupTelemetry() error {
	var err error
	if rt.cfg.Telemetry.Enabled {
		rt.telem, err = telemetry.NewExporter(rt.cfg.Telemetry.Protocol, rt.cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("creating telemetry exporter: %w", err)
		}
	} else {
		rt.telem = telemetry.NewNoopExporter()
	}
	rt.addCloser(func() { rt.telem.Close() })
	return nil
}

func (rt *runtime) setupStore() error {
	st, err := store.Open(rt.cfg.Store.Driver, rt.cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	rt.store = st
	rt.addCloser(func() { _ = st.Close() })
	return nil
}

// setupProvider creates the LLM provider when some role needs it.
func (rt *runtime) setupProvider() error {
	if !rt.cfg.NeedsLLM() {
		return nil
	}
	llmProvider := rt.cfg.LLM.Provider
	if llmProvider == "" {
		llmProvider = llm.InferProviderFromModel(rt.cfg.LLM.Model)
	}
	apiKey := rt.cfg.GetAPIKey()
	if rt.creds != nil {
		if k := rt.creds.GetAPIKey(llmProvider); k != "" {
			apiKey = k
		}
	}

	var err error
	rt.provider, err = llm.NewProvider(llm.ProviderConfig{
		Provider:    llmProvider,
		Model:       rt.cfg.LLM.Model,
		APIKey:      apiKey,
		MaxTokens:   rt.cfg.LLM.MaxTokens,
		BaseURL:     rt.cfg.LLM.BaseURL,
		Thinking:    llm.ThinkingConfig{Level: llm.ThinkingLevel(rt.cfg.LLM.Thinking)},
		RetryConfig: parseRetryConfig(rt.cfg.LLM.MaxRetries, rt.cfg.LLM.RetryBackoff),
	})
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}
	return nil
}

func (rt *runtime) setupCoordinator() error {
	idp := ids.UUID{}
	fetchers := fetch.All(rt.cfg.Fixtures.Dir)

	ws := make([]workers.Worker, 0, len(brief.Domains))
	for _, d := range brief.Domains {
		var opts []workers.Option
		if a := rt.cfg.Agent(string(d)); a.Mode == string(workers.ModeDeep) {
			opts = append(opts, workers.WithDeep(rt.provider, a.MaxIterations))
		}
		ws = append(ws, workers.New(d, fetchers[d], rt.store, opts...))
	}

	var engine correlate.Engine = correlate.NewFast(rt.store, idp)
	if a := rt.cfg.Agent(config.RoleCorrelator); a.Mode == "deep" && rt.provider != nil {
		engine = correlate.NewDeep(rt.provider, rt.store, idp, a.MaxIterations)
	}

	var strategy synth.Strategy = synth.NewRules()
	if rt.cfg.Synthesis.Mode == "ai" && rt.provider != nil {
		a := rt.cfg.Agent(config.RoleSynthesizer)
		strategy = synth.WithFallback(synth.NewAI(rt.provider, rt.store, a.MaxIterations), synth.NewRules())
	}

	worker, correlation, synthesis := rt.cfg.Timeouts.Durations()
	rt.coordinator = coordinator.New(ws, engine, strategy, rt.store,
		coordinator.WithIDs(idp),
		coordinator.WithEvents(rt.logEvent),
		coordinator.WithTimeouts(coordinator.Timeouts{
			Worker:      worker,
			Correlation: correlation,
			Synthesis:   synthesis,
		}),
	)
	return nil
}

// logEvent forwards pipeline events to the telemetry exporter.
func (rt *runtime) logEvent(name string, data map[string]interface{}) {
	rt.telem.LogEvent(name, data)
}

// parseRetryConfig converts config values to RetryConfig.
func parseRetryConfig(maxRetries int, backoffStr string) llm.RetryConfig {
	cfg := llm.RetryConfig{
		MaxRetries: maxRetries,
	}
	if backoffStr != "" {
		if d, err := time.ParseDuration(backoffStr); err == nil {
			cfg.MaxBackoff = d
		}
	}
	return cfg
}
