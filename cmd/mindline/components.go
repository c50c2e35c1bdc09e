package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/mindline/internal/cluster"
	"github.com/hyperjump/mindline/internal/concept"
	"github.com/hyperjump/mindline/internal/config"
	"github.com/hyperjump/mindline/internal/connector"
	"github.com/hyperjump/mindline/internal/connector/email"
	"github.com/hyperjump/mindline/internal/connector/meeting"
	"github.com/hyperjump/mindline/internal/connector/notes"
	"github.com/hyperjump/mindline/internal/connector/screenshot"
	"github.com/hyperjump/mindline/internal/keyword"
	"github.com/hyperjump/mindline/internal/llm"
	"github.com/hyperjump/mindline/internal/metrics"
	"github.com/hyperjump/mindline/internal/normalize"
	"github.com/hyperjump/mindline/internal/pipeline"
	"github.com/hyperjump/mindline/internal/query"
	"github.com/hyperjump/mindline/internal/scoring"
	"github.com/hyperjump/mindline/internal/storage"
)

// Components holds initialized services.
type Components struct {
	Store     storage.Store
	Index     keyword.Index
	Extractor *concept.Extractor
	Engine    *query.Engine
	Pipeline  *pipeline.Pipeline
	Metrics   *metrics.Collector
}

func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	index, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c := &Components{Store: store, Index: index, Metrics: metrics.New()}

	c.Extractor, err = newExtractor(cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Engine = query.NewEngine(store,
		query.WithIndex(index),
		query.WithExtractor(c.Extractor),
		query.WithLogger(logger),
	)

	fetcher := connector.NewFetcher(newConnectors(cfg, logger),
		connector.WithWorkers(cfg.Fetch.Workers),
		connector.WithSourceTimeout(cfg.Fetch.SourceTimeout),
		connector.WithLogger(logger),
	)
	c.Pipeline = pipeline.New(fetcher, store,
		pipeline.WithIndex(index),
		pipeline.WithNormalizer(normalize.New(normalize.WithLogger(logger))),
		pipeline.WithExtractor(c.Extractor),
		pipeline.WithClusterer(cluster.New(
			cluster.WithMinEdgeWeight(cfg.Cluster.MinEdgeWeight),
			cluster.WithMinClusterSize(cfg.Cluster.MinClusterSize),
			cluster.WithLogger(logger),
		)),
		pipeline.WithScorer(scoring.New(scoring.ConfigFrom(cfg.Scoring), scoring.WithLogger(logger))),
		pipeline.WithMetrics(c.Metrics),
		pipeline.WithItemWorkers(cfg.Fetch.ItemWorkers),
		pipeline.WithLogger(logger),
	)
	return c, nil
}

// newExtractor builds the concept extractor. The llm classifier falls back to
// keyword rules when the model is unreachable or answers off-list.
func newExtractor(cfg *config.Config, logger *zap.Logger) (*concept.Extractor, error) {
	opts := []concept.Option{
		concept.WithMinTokenLength(cfg.Concepts.MinTokenLength),
		concept.WithMaxConcepts(cfg.Concepts.MaxConcepts),
		concept.WithStopwords(concept.DefaultStopwords(cfg.Concepts.ExtraStopwords...)),
		concept.WithLogger(logger),
	}
	if cfg.Concepts.Classifier == "llm" || cfg.LLM.Summaries {
		completer, err := llm.New(cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize llm: %w", err)
		}
		if cfg.Concepts.Classifier == "llm" {
			opts = append(opts, concept.WithClassifier(
				concept.NewLLMClassifier(completer, concept.NewKeywordClassifier(), logger)))
		}
		if cfg.LLM.Summaries {
			opts = append(opts, concept.WithSummarizer(concept.NewSummarizer(completer)))
		}
	}
	return concept.New(opts...), nil
}

func retryPolicy(cfg config.FetchConfig) connector.RetryPolicy {
	p := connector.DefaultRetryPolicy()
	p.Attempts = cfg.RetryAttempts
	p.InitialInterval = cfg.RetryInitialInterval
	p.MaxInterval = cfg.RetryMaxInterval
	return p
}

func newConnectors(cfg *config.Config, logger *zap.Logger) []connector.Connector {
	src := cfg.Sources
	retry := retryPolicy(cfg.Fetch)
	var conns []connector.Connector
	if src.Screenshot.Enabled {
		conns = append(conns, screenshot.New(src.Screenshot, screenshot.WithLogger(logger)))
	}
	if src.Notes.Enabled {
		conns = append(conns, notes.New(src.Notes, notes.WithLogger(logger)))
	}
	if src.Email.Enabled {
		conns = append(conns, email.New(src.Email, email.WithLogger(logger), email.WithRetryPolicy(retry)))
	}
	if src.Meeting.Enabled {
		conns = append(conns, meeting.New(src.Meeting, meeting.WithLogger(logger), meeting.WithRetryPolicy(retry)))
	}
	return conns
}

// watchRoots returns the local source directories and the union of their extensions.
func watchRoots(cfg *config.Config) (roots, exts []string) {
	seen := make(map[string]bool)
	add := func(dir string, e []string) {
		roots = append(roots, dir)
		for _, x := range e {
			if !seen[x] {
				seen[x] = true
				exts = append(exts, x)
			}
		}
	}
	if s := cfg.Sources.Screenshot; s.Enabled {
		add(s.Dir, s.Extensions)
	}
	if n := cfg.Sources.Notes; n.Enabled {
		add(n.Dir, n.Extensions)
	}
	return roots, exts
}
