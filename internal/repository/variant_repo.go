package repository

import (
	"context"
	"errors"

	"fulfillment-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VariantRepo interface {
	Create(ctx context.Context, v *models.ProductVariant) error
	// GetActive возвращает активный вариант указанного товара, nil если нет.
	GetActive(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error)
	Get(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error)

	// Резервирование остатка варианта (атомарно):
	// TryReserve: if stock - reserved >= qty then reserved += qty
	TryReserve(ctx context.Context, variantID uuid.UUID, qty int32) (bool, error)
	// Release: reserved -= qty (предполагаем reserved >= qty)
	Release(ctx context.Context, variantID uuid.UUID, qty int32) (bool, error)
}

type variantRepo struct{ db *gorm.DB }

func NewVariantRepo(db *gorm.DB) VariantRepo { return &variantRepo{db: db} }

func (r *variantRepo) Create(ctx context.Context, v *models.ProductVariant) error {
	return r.db.WithContext(ctx).Select("*").Create(v).Error
}

func (r *variantRepo) GetActive(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	var v models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("id = ? AND product_id = ? AND is_active = true", variantID, productID).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *variantRepo) Get(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	var v models.ProductVariant
	err := r.db.WithContext(ctx).First(&v, "id = ?", variantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *variantRepo) TryReserve(ctx context.Context, variantID uuid.UUID, qty int32) (bool, error) {
	// атомарно: reserved += qty, если stock - reserved >= qty.
	// Guard-условие закрывает гонку двух конкурентных reserve.
	tx := r.db.WithContext(ctx).Exec(`
UPDATE product_variants
SET reserved   = reserved + @q,
    updated_at = now()
WHERE id = @vid
  AND stock - reserved >= @q
`, map[string]any{
		"vid": variantID,
		"q":   qty,
	})
	return tx.RowsAffected > 0, tx.Error
}

func (r *variantRepo) Release(ctx context.Context, variantID uuid.UUID, qty int32) (bool, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE product_variants
SET reserved   = reserved - @q,
    updated_at = now()
WHERE id = @vid
  AND reserved >= @q
`, map[string]any{
		"vid": variantID,
		"q":   qty,
	})
	return tx.RowsAffected > 0, tx.Error
}
