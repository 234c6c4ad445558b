package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Scheduler struct {
	sweeper  *Sweeper
	interval time.Duration
	log      *zap.Logger
	stopCh   chan struct{}
}

func NewScheduler(sweeper *Sweeper, interval time.Duration, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Start запускает периодический обход просроченных резерваций
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("starting reservation sweep scheduler", zap.Duration("interval", s.interval))
	go s.run(ctx)
}

// Stop останавливает планировщик
func (s *Scheduler) Stop() {
	s.log.Info("stopping reservation sweep scheduler")
	close(s.stopCh)
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Выполняем сразу при старте
	if _, err := s.sweeper.CleanupExpired(ctx); err != nil {
		s.log.Error("initial reservation sweep failed", zap.Error(err))
	}

	for {
		select {
		case <-ticker.C:
			if _, err := s.sweeper.CleanupExpired(ctx); err != nil {
				s.log.Error("reservation sweep failed", zap.Error(err))
			}
		case <-s.stopCh:
			s.log.Info("reservation sweep stopped")
			return
		case <-ctx.Done():
			s.log.Info("reservation sweep cancelled")
			return
		}
	}
}

// RunOnceNow выполняет обход немедленно (для cmd/sweeper и тестов)
func (s *Scheduler) RunOnceNow(ctx context.Context) (int, error) {
	return s.sweeper.CleanupExpired(ctx)
}
