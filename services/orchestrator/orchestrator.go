// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator hosts the interview engine behind the HTTP API.
//
// New wires every component from a config.Config: telemetry, the session
// store, the LLM-backed collaborator, the optional Weaviate knowledge base,
// the question bank, metrics and the TTL sweeper. Run serves until its
// context is cancelled.
//
//	svc, err := orchestrator.New(ctx, cfg, orchestrator.Options{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	return svc.Run(ctx)
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianCoach/pkg/config"
	badgerdb "github.com/AleutianAI/AleutianCoach/pkg/storage/badger"
	"github.com/AleutianAI/AleutianCoach/services/interview/collaborator"
	"github.com/AleutianAI/AleutianCoach/services/interview/consensus"
	"github.com/AleutianAI/AleutianCoach/services/interview/engine"
	"github.com/AleutianAI/AleutianCoach/services/interview/observability"
	"github.com/AleutianAI/AleutianCoach/services/interview/questions"
	"github.com/AleutianAI/AleutianCoach/services/interview/screening"
	"github.com/AleutianAI/AleutianCoach/services/interview/session"
	"github.com/AleutianAI/AleutianCoach/services/llm"
	"github.com/AleutianAI/AleutianCoach/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianCoach/services/orchestrator/routes"
	"github.com/AleutianAI/AleutianCoach/services/orchestrator/ttl"
)

// Service is the running coach service.
type Service interface {
	// Run serves HTTP until ctx is cancelled or the listener fails, then
	// releases every resource.
	Run(ctx context.Context) error

	// Router returns the configured handler, for tests.
	Router() *gin.Engine

	// Engine returns the interview engine.
	Engine() *engine.Engine

	// Close releases resources without serving. Safe to call more than once.
	Close() error
}

// Options override components that New would otherwise build from config.
type Options struct {
	Logger *slog.Logger

	// Registry receives every Prometheus collector. Default: a new registry
	// with the Go and process collectors.
	Registry *prometheus.Registry

	// LLM replaces the configured backend.
	LLM llm.LLMClient

	// Collaborator replaces the LLM-backed evaluator entirely.
	Collaborator collaborator.Evaluator
}

type service struct {
	config   config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	router   *gin.Engine
	engine   *engine.Engine

	store          session.Store
	db             *badgerdb.DB
	weaviateClient *weaviate.Client
	bank           *questions.Bank
	watcher        *questions.Watcher
	ttlScheduler   ttl.TTLScheduler
	telemetry      *telemetry

	closeOnce sync.Once
	closeErr  error
}

// New builds the service. On error every partially created resource is
// released.
func New(ctx context.Context, cfg config.Config, opts Options) (Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	s := &service{config: cfg, logger: logger, registry: reg}

	var err error
	if s.telemetry, err = initTelemetry(ctx, cfg.Telemetry, reg, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.metrics = observability.NewMetrics(reg)

	if err := s.initStore(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	if err := s.initQuestionBank(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load question bank: %w", err)
	}
	if err := s.initWeaviate(ctx); err != nil {
		logger.Warn("Weaviate initialization failed, using the built-in knowledge base",
			slog.String("error", err.Error()))
	}
	collab, err := s.initCollaborator(opts)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize collaborator: %w", err)
	}

	var retriever collaborator.Retriever
	if s.weaviateClient != nil {
		retriever = collaborator.NewWeaviateRetriever(s.weaviateClient, cfg.Weaviate.Timeout, logger)
	} else {
		retriever = collaborator.NewStaticRetriever(collaborator.DefaultKnowledge())
	}

	var screener engine.AnswerScreener
	if cfg.Screening.Enabled {
		sc, err := screening.New()
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to load answer screening patterns: %w", err)
		}
		screener = sc
	}

	s.engine, err = engine.New(cfg.Engine, engine.Deps{
		Store:            s.store,
		Bank:             s.bank,
		Collaborator:     collab,
		Retriever:        retriever,
		Observer:         s.metrics,
		ConsensusOptions: []consensus.Option{consensus.WithAgentObserver(s.metrics.ObserveAgent)},
		Screener:         screener,
		Logger:           logger,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	if sweeper, ok := s.store.(session.Sweeper); ok {
		s.ttlScheduler = ttl.NewTTLScheduler(sweeper,
			ttl.SchedulerConfig{Interval: cfg.Store.SweepInterval},
			s.metrics.ObserveSweep, logger)
	}

	s.initRouter()
	return s, nil
}

func (s *service) Router() *gin.Engine     { return s.router }
func (s *service) Engine() *engine.Engine { return s.engine }

func (s *service) Run(ctx context.Context) error {
	defer s.Close()

	if s.ttlScheduler != nil {
		if err := s.ttlScheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start TTL sweeper: %w", err)
		}
	}
	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			s.logger.Warn("question bank watch disabled", slog.String("error", err.Error()))
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting coach server", slog.Int("port", s.config.Server.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("Shutting down coach server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *service) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.ttlScheduler != nil {
			s.ttlScheduler.Stop()
		}
		if s.watcher != nil {
			s.watcher.Stop()
		}
		if s.db != nil {
			if err := s.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close badger: %w", err))
			}
		}
		if s.telemetry != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.telemetry.shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func (s *service) initStore() error {
	storeOpts := []session.Option{
		session.WithTTL(s.config.Store.CheckpointTTL),
		session.WithObserver(s.metrics.ObserveStore),
	}
	switch s.config.Store.Backend {
	case config.StoreBadger:
		dbCfg := badgerdb.DefaultConfig(config.ExpandHome(s.config.Store.DataDir))
		dbCfg.Logger = s.logger
		db, err := badgerdb.Open(dbCfg)
		if err != nil {
			return err
		}
		s.db = db
		store, err := session.NewBadgerStore(db, storeOpts...)
		if err != nil {
			return err
		}
		s.store = store
		s.logger.Info("Using BadgerDB session store", slog.String("path", db.Path()))
	default:
		s.store = session.NewMemoryStore(storeOpts...)
		s.logger.Info("Using in-memory session store")
	}
	return nil
}

func (s *service) initQuestionBank(ctx context.Context) error {
	path := s.config.Questions.Path
	if path == "" {
		s.bank = questions.DefaultBank()
		return nil
	}
	bank, err := questions.LoadBank(ctx, config.ExpandHome(path))
	if err != nil {
		return err
	}
	s.bank = bank
	s.logger.Info("Loaded question bank", slog.String("source", bank.Source()), slog.Int("questions", bank.Len()))
	if s.config.Questions.Watch {
		s.watcher, err = questions.NewWatcher(bank, config.ExpandHome(path), s.config.Questions.Debounce, s.logger)
		if err != nil {
			return err
		}
	}
	return nil
}

// initWeaviate connects to the knowledge base when a URL is configured.
func (s *service) initWeaviate(ctx context.Context) error {
	weaviateURL := strings.Trim(s.config.Weaviate.URL, "\"' ")
	if weaviateURL == "" {
		s.logger.Info("Weaviate URL not configured, using the built-in knowledge base")
		return nil
	}
	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: parsedURL.Host, Scheme: parsedURL.Scheme})
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := collaborator.EnsureKnowledgeSchema(schemaCtx, client); err != nil {
		return err
	}
	s.weaviateClient = client
	s.logger.Info("Weaviate client initialized", slog.String("url", weaviateURL))
	return nil
}

func (s *service) initCollaborator(opts Options) (collaborator.Evaluator, error) {
	if opts.Collaborator != nil {
		return opts.Collaborator, nil
	}
	client := opts.LLM
	if client == nil {
		var err error
		client, err = llm.NewClient(s.config.LLM, s.logger)
		if err != nil {
			return nil, err
		}
	}
	cc := s.config.Collaborator
	limiter := rate.NewLimiter(rate.Limit(cc.RatePerSecond), cc.Burst)
	return collaborator.NewRetrying(collaborator.NewLLMEvaluator(client, s.logger), cc.Retry, limiter, s.logger), nil
}

func (s *service) initRouter() {
	if s.config.Server.GinMode != "" {
		gin.SetMode(s.config.Server.GinMode)
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery(), otelgin.Middleware(s.config.Telemetry.ServiceName))

	var importer handlers.KnowledgeImporter
	if s.weaviateClient != nil {
		client := s.weaviateClient
		importer = func(ctx context.Context, items []collaborator.KnowledgeItem) (int, error) {
			return collaborator.ImportKnowledge(ctx, client, items)
		}
	}
	routes.SetupRoutes(s.router, routes.Deps{
		Engine:   s.engine,
		Importer: importer,
		Gatherer: s.registry,
		APIKey:   s.config.Server.APIKey,
		Logger:   s.logger,
	})
}

var _ Service = (*service)(nil)
