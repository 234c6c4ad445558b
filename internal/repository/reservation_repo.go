package repository

import (
	"context"
	"errors"
	"time"

	"fulfillment-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReservationRepo interface {
	Create(ctx context.Context, rsv *models.StockReservation) error
	// GetByReservationID возвращает резервацию по клиентскому id, nil если нет.
	GetByReservationID(ctx context.Context, reservationID string) (*models.StockReservation, error)

	// Маркировки статуса. Переход выполняется только из RESERVED —
	// повторный вызов возвращает false, не ошибку (идемпотентность).
	MarkConfirmed(ctx context.Context, reservationID string, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, reservationID string, at time.Time) (bool, error)

	// ListExpired — просроченные активные резервации для свипера.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.StockReservation, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.StockReservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.StockReservation, error)
}

type reservationRepo struct{ db *gorm.DB }

func NewReservationRepo(db *gorm.DB) ReservationRepo { return &reservationRepo{db: db} }

func (r *reservationRepo) Create(ctx context.Context, rsv *models.StockReservation) error {
	return r.db.WithContext(ctx).Create(rsv).Error
}

func (r *reservationRepo) GetByReservationID(ctx context.Context, reservationID string) (*models.StockReservation, error) {
	var rsv models.StockReservation
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		First(&rsv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rsv, nil
}

func (r *reservationRepo) MarkConfirmed(ctx context.Context, reservationID string, at time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("reservation_id = ? AND status = ?", reservationID, models.ReservationReserved).
		Updates(map[string]any{
			"status":       models.ReservationConfirmed,
			"confirmed_at": at,
		})
	return tx.RowsAffected > 0, tx.Error
}

func (r *reservationRepo) MarkCancelled(ctx context.Context, reservationID string, at time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("reservation_id = ? AND status = ?", reservationID, models.ReservationReserved).
		Updates(map[string]any{
			"status":       models.ReservationCancelled,
			"cancelled_at": at,
		})
	return tx.RowsAffected > 0, tx.Error
}

func (r *reservationRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.StockReservation, error) {
	if limit <= 0 {
		limit = 100
	}
	var list []models.StockReservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", models.ReservationReserved, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *reservationRepo) ListBySession(ctx context.Context, sessionID string) ([]models.StockReservation, error) {
	var list []models.StockReservation
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *reservationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.StockReservation, error) {
	var list []models.StockReservation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}
