package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/mindyard/internal/analyzer"
	"github.com/starford/mindyard/internal/checksum"
	"github.com/starford/mindyard/internal/distiller"
	"github.com/starford/mindyard/internal/embedding"
	"github.com/starford/mindyard/internal/index"
	"github.com/starford/mindyard/internal/insightservice"
	"github.com/starford/mindyard/internal/matcher"
	"github.com/starford/mindyard/internal/pipeline"
	"github.com/starford/mindyard/internal/sanitizer"
	"github.com/starford/mindyard/internal/worker"
)

// components is the wired pipeline shared by every run mode.
type components struct {
	db        *index.DB
	hasher    *checksum.Hasher
	sanitizer *sanitizer.Sanitizer
	matcher   *matcher.Matcher
	pipeline  *pipeline.Pipeline
	service   *insightservice.Service
}

func build(cfg *Config, logger *slog.Logger, notifier insightservice.Notifier) (*components, error) {
	if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	hasher := checksum.NewHasher(cfg.Privacy.Secret)

	var detectors []sanitizer.Detector
	if cfg.Sanitizer.LLMDetector {
		d, err := sanitizer.NewLLMDetector(sanitizer.LLMConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init llm detector: %w", err)
		}
		detectors = append(detectors, d)
	}
	san := sanitizer.New(hasher, logger, sanitizerPolicy(cfg.Sanitizer), detectors...)

	emb, err := embedding.New(embedding.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		CacheTTL:   cfg.Embedding.CacheTTL,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	logger.Info("embedder ready", slog.String("embedder", emb.Name()))

	dis := distiller.New(distillerSettings(cfg.Distiller), emb, hasher, logger)
	p := pipeline.New(analyzer.New(), san, dis, db, logger)
	m := matcher.New(db, matcherSettings(cfg.Matcher))
	svc := insightservice.NewService(db, p, m, hasher, notifier, logger, serviceOptions(cfg.Pipeline))

	return &components{db: db, hasher: hasher, sanitizer: san, matcher: m, pipeline: p, service: svc}, nil
}

func (c *components) Close() error {
	return c.db.Close()
}

// applyTunables swaps the hot-reloadable settings from a freshly loaded config.
func (c *components) applyTunables(cfg *Config) {
	c.sanitizer.SetPolicy(sanitizerPolicy(cfg.Sanitizer))
	c.matcher.SetSettings(matcherSettings(cfg.Matcher))
}

func sanitizerPolicy(c SanitizerConfig) sanitizer.Policy {
	weights := make(map[sanitizer.Kind]float64, len(c.RuleWeights))
	for kind, w := range c.RuleWeights {
		weights[sanitizer.Kind(kind)] = w
	}
	return sanitizer.Policy{
		ConfidenceThreshold: c.ConfidenceThreshold,
		DetectorTimeout:     c.DetectorTimeout,
		Weights:             weights,
	}
}

func distillerSettings(c DistillerConfig) distiller.Settings {
	return distiller.Settings{
		MaxStatementLength: c.MaxStatementLength,
		SimilarityCeiling:  c.SimilarityCeiling,
		ShingleSize:        c.ShingleSize,
		MinContentWords:    c.MinContentWords,
		EmbedTimeout:       c.EmbedTimeout,
		SharingThreshold:   c.SharingThreshold,
	}
}

func matcherSettings(c MatcherConfig) matcher.Settings {
	return matcher.Settings{
		EmbeddingWeight: c.EmbeddingWeight,
		TopicWeight:     c.TopicWeight,
		MinScore:        c.MinScore,
		K:               c.K,
		CandidatePool:   c.CandidatePool,
		Timeout:         c.Timeout,
		AllowSameUser:   c.AllowSameUser,
	}
}

func serviceOptions(c PipelineConfig) insightservice.Options {
	return insightservice.Options{
		Workers:       c.Workers,
		QueueSize:     c.QueueSize,
		MaxAttempts:   c.MaxAttempts,
		Backoff:       worker.Backoff{Base: c.BackoffBase, Max: c.BackoffMax},
		RatePerSecond: c.SubmissionsPerSecond,
		Burst:         c.Burst,
		MaxNoteBytes:  c.MaxNoteBytes,
	}
}

// errConfigRequired is returned by every run mode when no config was supplied.
var errConfigRequired = errors.New("config is required")
