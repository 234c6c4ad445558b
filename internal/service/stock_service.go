package service

import (
	"context"
	"encoding/json"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type stockService struct {
	repo       *repository.Repository
	events     EventBus
	defaultTTL time.Duration
	now        func() time.Time
	log        *zap.Logger
}

func NewStockService(repo *repository.Repository, events EventBus, defaultTTL time.Duration, log *zap.Logger) StockService {
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	return &stockService{
		repo:       repo,
		events:     events,
		defaultTTL: defaultTTL,
		now:        time.Now,
		log:        log,
	}
}

// snapshot цены/остатков, который кладём в metadata резервации.
type stockSnapshot struct {
	PriceCents int64 `json:"price_cents"`
	Stock      int32 `json:"stock"`
	Reserved   int32 `json:"reserved"`
	Available  int32 `json:"available"`
}

func (s *stockService) ValidateProduct(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, quantity int32) (ValidationResult, error) {
	snap, err := s.validate(ctx, s.repo, productID, variantID, quantity)
	if err != nil {
		return ValidationResult{}, err
	}
	return ValidationResult{PriceCents: snap.PriceCents, Available: snap.Available}, nil
}

// validate — единственный источник истины по цене и доступности.
// Вызывается и снаружи (ValidateProduct), и внутри транзакции Reserve.
func (s *stockService) validate(ctx context.Context, repo *repository.Repository, productID uuid.UUID, variantID *uuid.UUID, quantity int32) (stockSnapshot, error) {
	if quantity <= 0 {
		return stockSnapshot{}, ErrInvalidQuantity
	}

	p, err := repo.Products.GetByID(ctx, productID)
	if err != nil {
		return stockSnapshot{}, err
	}
	if p == nil {
		return stockSnapshot{}, ErrProductNotFound
	}
	if !p.IsActive {
		return stockSnapshot{}, ErrInactiveProduct
	}

	if variantID != nil {
		v, err := repo.Variants.GetActive(ctx, p.ID, *variantID)
		if err != nil {
			return stockSnapshot{}, err
		}
		if v == nil {
			return stockSnapshot{}, ErrVariantNotFound
		}
		snap := stockSnapshot{
			PriceCents: v.PriceCents,
			Stock:      v.Stock,
			Reserved:   v.Reserved,
			Available:  v.Available(),
		}
		if snap.Available < quantity {
			return stockSnapshot{}, ErrOutOfStock
		}
		return snap, nil
	}

	if p.HasVariants {
		return stockSnapshot{}, ErrVariantRequired
	}
	snap := stockSnapshot{
		PriceCents: p.PriceCents,
		Stock:      p.Stock,
		Available:  p.Stock,
	}
	if snap.Available < quantity {
		return stockSnapshot{}, ErrOutOfStock
	}
	return snap, nil
}

func (s *stockService) Reserve(ctx context.Context, in ReserveInput) (string, error) {
	if in.Quantity <= 0 {
		return "", ErrInvalidQuantity
	}
	if in.SessionID == "" {
		return "", ErrSessionRequired
	}

	ttl := in.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	// uuid v4 — криптослучайный, id нельзя угадать и коллизии исключены.
	reservationID := uuid.NewString()
	now := s.now()

	err := s.repo.WithTx(func(tx *repository.Repository) error {
		snap, err := s.validate(ctx, tx, in.ProductID, in.VariantID, in.Quantity)
		if err != nil {
			return err
		}

		// Захват остатка guard-апдейтом: проверка и запись атомарны,
		// параллельный reserve на тот же остаток получит rowsAffected=0.
		if in.VariantID != nil {
			ok, err := tx.Variants.TryReserve(ctx, *in.VariantID, in.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return ErrOutOfStock
			}
		} else {
			ok, err := tx.Products.TakeStock(ctx, in.ProductID, in.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return ErrOutOfStock
			}
		}

		meta, err := json.Marshal(snap)
		if err != nil {
			return err
		}

		// Строка резервации и счётчик пишутся в одной транзакции —
		// частично применённых hold'ов не бывает.
		rsv := &models.StockReservation{
			ReservationID: reservationID,
			SessionID:     in.SessionID,
			UserID:        in.UserID,
			ProductID:     in.ProductID,
			VariantID:     in.VariantID,
			Quantity:      in.Quantity,
			Status:        models.ReservationReserved,
			ExpiresAt:     now.Add(ttl),
			Metadata:      meta,
			CreatedAt:     now,
		}
		return tx.Reservations.Create(ctx, rsv)
	})
	if err != nil {
		return "", err
	}

	if s.events != nil {
		_ = s.events.PublishStockReserved(ctx, StockReservedEvent{
			ReservationID: reservationID,
			ProductID:     in.ProductID,
			VariantID:     in.VariantID,
			Quantity:      in.Quantity,
			SessionID:     in.SessionID,
			UserID:        in.UserID,
			ExpiresAt:     now.Add(ttl),
			ReservedAt:    now,
		})
	}

	return reservationID, nil
}

func (s *stockService) Confirm(ctx context.Context, reservationID string) (bool, error) {
	now := s.now()

	var (
		confirmed bool
		expired   bool
	)
	err := s.repo.WithTx(func(tx *repository.Repository) error {
		r, err := tx.Reservations.GetByReservationID(ctx, reservationID)
		if err != nil {
			return err
		}
		if r == nil || r.Status != models.ReservationReserved {
			// терминальная или отсутствующая — no-op для вызывающего
			return nil
		}

		// Просроченную резервацию подтверждать нельзя: освобождаем остаток
		// здесь же, не дожидаясь свипера.
		if now.After(r.ExpiresAt) {
			if err := s.releaseLocked(ctx, tx, r, now); err != nil {
				return err
			}
			expired = true
			return nil
		}

		ok, err := tx.Reservations.MarkConfirmed(ctx, reservationID, now)
		if err != nil {
			return err
		}
		confirmed = ok
		return nil
	})
	if err != nil {
		return false, err
	}
	if expired {
		if s.events != nil {
			_ = s.events.PublishReservationReleased(ctx, ReservationReleasedEvent{
				ReservationID: reservationID,
				Reason:        "expired",
				ReleasedAt:    now,
			})
		}
		return false, ErrReservationExpired
	}

	if confirmed && s.events != nil {
		_ = s.events.PublishReservationConfirmed(ctx, ReservationConfirmedEvent{
			ReservationID: reservationID,
			ConfirmedAt:   now,
		})
	}
	return confirmed, nil
}

func (s *stockService) Release(ctx context.Context, reservationID string) (bool, error) {
	now := s.now()

	var released bool
	err := s.repo.WithTx(func(tx *repository.Repository) error {
		r, err := tx.Reservations.GetByReservationID(ctx, reservationID)
		if err != nil {
			return err
		}
		if r == nil || r.Status != models.ReservationReserved {
			return nil
		}
		if err := s.releaseLocked(ctx, tx, r, now); err != nil {
			return err
		}
		released = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if released && s.events != nil {
		_ = s.events.PublishReservationReleased(ctx, ReservationReleasedEvent{
			ReservationID: reservationID,
			Reason:        "cancelled",
			ReleasedAt:    now,
		})
	}
	return released, nil
}

// releaseLocked переводит резервацию в CANCELLED и возвращает остаток.
// Вызывается только внутри WithTx.
func (s *stockService) releaseLocked(ctx context.Context, tx *repository.Repository, r *models.StockReservation, now time.Time) error {
	ok, err := tx.Reservations.MarkCancelled(ctx, r.ReservationID, now)
	if err != nil {
		return err
	}
	if !ok {
		// параллельный вызов успел раньше — остаток уже возвращён
		return nil
	}

	if r.VariantID != nil {
		ok, err := tx.Variants.Release(ctx, *r.VariantID, r.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Warn("расхождение счётчика reserved при освобождении",
				zap.String("reservation_id", r.ReservationID),
				zap.String("variant_id", r.VariantID.String()),
				zap.Int32("quantity", r.Quantity))
		}
		return nil
	}

	_, err = tx.Products.RestoreStock(ctx, r.ProductID, r.Quantity)
	return err
}

func (s *stockService) GetReservation(ctx context.Context, reservationID string) (*models.StockReservation, error) {
	r, err := s.repo.Reservations.GetByReservationID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrReservationNotFound
	}
	return r, nil
}

func (s *stockService) ListSessionReservations(ctx context.Context, sessionID string) ([]models.StockReservation, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	return s.repo.Reservations.ListBySession(ctx, sessionID)
}
