package main

import (
	"time"

	"github.com/JaimeStill/assay/internal/analyses"
	"github.com/JaimeStill/assay/internal/config"
	"github.com/JaimeStill/assay/internal/events"
	"github.com/JaimeStill/assay/internal/infrastructure"
	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/llm"
	"github.com/JaimeStill/assay/internal/sink"
	"github.com/JaimeStill/assay/internal/sources"
	"github.com/JaimeStill/assay/internal/worker"
)

// Service runs the evaluation side of the pipeline: the worker pool, the
// reaper for lost or stale jobs, and the analytical reconciler.
type Service struct {
	infra      *infrastructure.Infrastructure
	pool       *worker.Pool
	reaper     *worker.Reaper
	reconciler *sink.Reconciler
}

func NewService(cfg *config.Config) (*Service, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	logger := infra.Logger.With("module", "worker")
	db := infra.Database.Connection()

	sourcesSystem := sources.New(db, infra.Storage, logger, cfg.API.Pagination)
	analysesSystem := analyses.New(db, logger, cfg.API.Pagination)
	eventsSystem := events.New(infra.Warehouse.Conn(), logger)
	queue := jobs.New(infra.QueueBackend(&cfg.Queue), analysesSystem, &cfg.Queue, logger)

	writer := sink.NewWriter(analysesSystem, queue, eventsSystem, sourcesSystem, &cfg.Sink, logger)
	client := llm.New(&cfg.LLM, nil, logger)

	infra.Logger.Info(
		"worker initialized",
		"id", cfg.Worker.ID,
		"concurrency", cfg.Worker.Concurrency,
		"model", cfg.LLM.Model,
		"version", cfg.Version,
		"env", cfg.Env(),
	)

	return &Service{
		infra:      infra,
		pool:       worker.New(queue, sourcesSystem, client, writer, &cfg.Worker, logger),
		reaper:     worker.NewReaper(queue, writer, &cfg.Worker, logger),
		reconciler: sink.NewReconciler(analysesSystem, eventsSystem, sourcesSystem, &cfg.Sink, logger),
	}, nil
}

func (s *Service) Start() error {
	s.infra.Logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}

	if err := s.pool.Start(s.infra.Lifecycle); err != nil {
		return err
	}
	s.reaper.Start(s.infra.Lifecycle)
	s.reconciler.Start(s.infra.Lifecycle)

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("all subsystems ready")
	}()

	return nil
}

func (s *Service) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown")
	return s.infra.Lifecycle.Shutdown(timeout)
}
