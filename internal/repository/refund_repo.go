package repository

import (
	"context"
	"errors"
	"time"

	"fulfillment-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RefundListFilter struct {
	Status *models.RefundStatus
	Limit  int
	Offset int
}

// StatusSummary — строка агрегата для аналитики возвратов.
type StatusSummary struct {
	Status      models.RefundStatus
	Count       int64
	AmountCents int64
}

type RefundRepo interface {
	Create(ctx context.Context, rf *models.Refund) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Refund, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	// UpdateStatusFrom переводит возврат из from в поля fields атомарно,
	// false — если текущий статус уже другой.
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from models.RefundStatus, fields map[string]any) (bool, error)

	ListByStore(ctx context.Context, storeID uuid.UUID, f RefundListFilter) ([]models.Refund, int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Refund, error)
	// SummarizeByStatus — count/sum по статусам за период; storeID может быть nil.
	SummarizeByStatus(ctx context.Context, from, to time.Time, storeID *uuid.UUID) ([]StatusSummary, error)
}

type refundRepo struct{ db *gorm.DB }

func NewRefundRepo(db *gorm.DB) RefundRepo { return &refundRepo{db: db} }

func (r *refundRepo) Create(ctx context.Context, rf *models.Refund) error {
	return r.db.WithContext(ctx).Select("*").Create(rf).Error
}

func (r *refundRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Refund, error) {
	var rf models.Refund
	err := r.db.WithContext(ctx).First(&rf, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rf, nil
}

func (r *refundRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Refund{}).Where("id = ?", id).Updates(fields).Error
}

func (r *refundRepo) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from models.RefundStatus, fields map[string]any) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	return tx.RowsAffected > 0, tx.Error
}

func (r *refundRepo) ListByStore(ctx context.Context, storeID uuid.UUID, f RefundListFilter) ([]models.Refund, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Refund{}).Where("store_id = ?", storeID)

	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var list []models.Refund
	if err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *refundRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Refund, error) {
	var list []models.Refund
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *refundRepo) SummarizeByStatus(ctx context.Context, from, to time.Time, storeID *uuid.UUID) ([]StatusSummary, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Select("status, count(*) AS count, coalesce(sum(amount_cents), 0) AS amount_cents").
		Where("created_at >= ? AND created_at < ?", from, to).
		Group("status")

	if storeID != nil {
		q = q.Where("store_id = ?", *storeID)
	}

	var rows []StatusSummary
	err := q.Scan(&rows).Error
	return rows, err
}
