package sweeper

import (
	"context"
	"errors"
	"time"

	"fulfillment-service/internal/repository"
	"fulfillment-service/internal/service"

	"go.uber.org/zap"
)

const batchSize = 100

// Sweeper находит просроченные резервации и освобождает их через StockService.
type Sweeper struct {
	repo  *repository.Repository
	stock service.StockService
	now   func() time.Time
	log   *zap.Logger
}

func NewSweeper(repo *repository.Repository, stock service.StockService, log *zap.Logger) *Sweeper {
	return &Sweeper{
		repo:  repo,
		stock: stock,
		now:   time.Now,
		log:   log,
	}
}

// CleanupExpired обходит просроченные активные резервации батчами.
// Ошибка по одной резервации не прерывает обход остальных.
func (s *Sweeper) CleanupExpired(ctx context.Context) (int, error) {
	released := 0
	var errs []error

	for {
		expired, err := s.repo.Reservations.ListExpired(ctx, s.now(), batchSize)
		if err != nil {
			s.log.Error("failed to list expired reservations", zap.Error(err))
			return released, err
		}
		if len(expired) == 0 {
			break
		}

		progressed := 0
		for _, r := range expired {
			ok, err := s.stock.Release(ctx, r.ReservationID)
			if err != nil {
				s.log.Error("failed to release expired reservation",
					zap.String("reservation_id", r.ReservationID),
					zap.Error(err))
				errs = append(errs, err)
				continue
			}
			progressed++
			if ok {
				released++
			}
		}

		// ни одну из батча освободить не удалось — выходим, иначе зациклимся
		if progressed == 0 {
			break
		}
		if len(expired) < batchSize {
			break
		}
	}

	if released > 0 {
		s.log.Info("released expired reservations", zap.Int("count", released))
	}
	if len(errs) > 0 {
		return released, errors.Join(errs...)
	}
	return released, nil
}
