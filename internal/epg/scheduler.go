package epg

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/plexbridge/plexbridge/internal/models"
	"github.com/plexbridge/plexbridge/internal/observability"
	"github.com/plexbridge/plexbridge/internal/repository"
)

// Scheduler drives ingest cycles: once at startup, then per source either
// on its refresh interval or, when set, its cron expression. Schedule
// changes to sources take effect on the next Start.
type Scheduler struct {
	ingester *Ingester
	sources  repository.EpgSourceRepository
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewScheduler creates a Scheduler over the ingester.
func NewScheduler(ingester *Ingester, sources repository.EpgSourceRepository, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		ingester: ingester,
		sources:  sources,
		logger:   observability.WithComponent(logger, "epg-scheduler"),
	}
}

// Start begins scheduling all enabled sources and kicks off an immediate
// ingest cycle.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	sources, err := s.sources.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("listing EPG sources: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.cron = cron.New()

	for _, source := range sources {
		if source.CronExpression != "" {
			id := source.ID
			if _, err := s.cron.AddFunc(source.CronExpression, func() {
				s.ingestByID(runCtx, id)
			}); err != nil {
				cancel()
				return fmt.Errorf("cron expression for source %s: %w", source.Name, err)
			}
			continue
		}
		s.wg.Add(1)
		go s.runInterval(runCtx, source)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.ingester.IngestAll(runCtx)
	}()

	s.cron.Start()
	s.started = true
	s.logger.Info("EPG scheduler started", "sources", len(sources))
	return nil
}

// runInterval ticks on the source's refresh interval until the scheduler
// stops.
func (s *Scheduler) runInterval(ctx context.Context, source *models.EpgSource) {
	defer s.wg.Done()

	interval := source.RefreshInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ingestByID(ctx, source.ID)
		}
	}
}

// ingestByID reloads the source row before ingesting so disabled or
// deleted sources stop fetching at their next tick.
func (s *Scheduler) ingestByID(ctx context.Context, id models.ULID) {
	source, err := s.sources.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("loading EPG source", "error", err)
		return
	}
	if source == nil || !source.IsEnabled() {
		return
	}
	if err := s.ingester.IngestSource(ctx, source); err != nil {
		s.logger.Warn("scheduled EPG ingest failed",
			"source", source.Name, "error", err)
	}
}

// Stop halts all schedules and waits for in-flight cycles.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	cronStop := s.cron
	s.mu.Unlock()

	cancel()
	<-cronStop.Stop().Done()
	s.wg.Wait()
	s.logger.Info("EPG scheduler stopped")
}
