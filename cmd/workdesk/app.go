package main

import (
	"errors"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rahul/workdesk/internal/actions"
	"github.com/rahul/workdesk/internal/agent"
	"github.com/rahul/workdesk/internal/contextlog"
	"github.com/rahul/workdesk/internal/governance"
	"github.com/rahul/workdesk/internal/ingest"
	"github.com/rahul/workdesk/internal/llm"
	"github.com/rahul/workdesk/internal/observability"
	"github.com/rahul/workdesk/internal/retrieval"
	"github.com/rahul/workdesk/internal/store"
	"github.com/rahul/workdesk/pkg/config"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// app holds the wired components of one command invocation.
type app struct {
	cfg      *config.Config
	logger   *observability.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics

	model     *openai.LLM
	index     retrieval.Index
	catalog   *store.Catalog
	retriever *retrieval.Retriever
	ingester  *ingest.Ingester
	render    *ingest.RenderFetcher

	artifacts    *store.Artifacts
	contexts     *contextlog.Log
	orchestrator *agent.Orchestrator
}

// newApp wires the document side: index, catalog, retriever and ingester.
// withAgents adds the language model, the executor and the orchestrator.
func newApp(cfg *config.Config, logger *observability.Logger, withAgents bool) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = observability.NewMetrics(a.registry)

	if withAgents || cfg.Retrieval.Backend == "chromem" {
		name, provider := cfg.GetDefaultProvider()
		if name == "" {
			return nil, errors.New("no enabled provider found in config")
		}
		model, err := llm.NewModel(name, provider)
		if err != nil {
			return nil, err
		}
		a.model = model
	}

	if err := a.openDocuments(); err != nil {
		a.Close()
		return nil, err
	}
	if withAgents {
		if err := a.buildAgents(); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openDocuments() error {
	rc := a.cfg.Retrieval
	switch rc.Backend {
	case "bleve":
		path := ""
		if rc.PersistPath != "" {
			path = filepath.Join(rc.PersistPath, "bleve")
		}
		idx, err := retrieval.NewBleveIndex(path)
		if err != nil {
			return err
		}
		a.index = idx
	default:
		embedder, err := llm.NewEmbedder(a.model)
		if err != nil {
			return err
		}
		idx, err := retrieval.NewChromemIndex(rc.PersistPath, rc.Collection, rc.Compress, embedder.EmbedQuery)
		if err != nil {
			return err
		}
		a.index = idx
	}

	catalog, err := store.NewCatalog(a.cfg.Catalog.Path)
	if err != nil {
		return err
	}
	a.catalog = catalog

	a.retriever = retrieval.NewRetriever(a.index, a.catalog,
		retrieval.WithDefaults(rc.DefaultK, rc.ScoreThreshold),
		retrieval.WithLogger(a.logger),
		retrieval.WithMetrics(a.metrics),
	)

	var fetcher ingest.Fetcher = ingest.NewHTTPFetcher()
	if rc.RenderPages {
		a.render = ingest.NewRenderFetcher()
		fetcher = a.render
	}
	a.ingester = ingest.NewIngester(a.index, a.catalog,
		ingest.WithChunking(rc.ChunkSize, rc.ChunkOverlap),
		ingest.WithWebLoader(ingest.NewWebLoader(fetcher)),
		ingest.WithLogger(a.logger),
	)
	return nil
}

func (a *app) buildAgents() error {
	_, provider := a.cfg.GetDefaultProvider()
	gen := llm.NewModelGenerator(a.model, provider.Model,
		llm.WithLogger(a.logger),
		llm.WithMetrics(a.metrics),
	)

	policy, err := governance.FromConfig(a.cfg.Governance)
	if err != nil {
		return err
	}

	prompts := agent.NewPromptManager(a.cfg.Planner.PromptsDir)
	planner := agent.NewPlanner(gen, prompts,
		agent.WithPlannerLimits(a.cfg.Planner.Temperature, a.cfg.Planner.MaxTokens),
		agent.WithPlannerLogger(a.logger),
	)

	a.artifacts = store.NewArtifacts()
	executor := actions.NewExecutor(gen, a.artifacts, actions.WithLogger(a.logger))
	a.contexts = contextlog.New(a.logger)

	a.orchestrator = agent.NewOrchestrator(planner, a.retriever, executor, a.contexts,
		agent.WithPolicy(policy),
		agent.WithLogger(a.logger),
		agent.WithMetrics(a.metrics),
	)
	return nil
}

// Close releases the browser, the index and the catalog.
func (a *app) Close() {
	var err error
	if a.render != nil {
		err = multierr.Append(err, a.render.Close())
	}
	if a.index != nil {
		err = multierr.Append(err, a.index.Close())
	}
	if a.catalog != nil {
		err = multierr.Append(err, a.catalog.Close())
	}
	if err != nil {
		a.logger.Zap().Warn("closing resources failed", zap.Error(err))
	}
}
