package migrate

import (
	"context"

	"fulfillment-service/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MigrateOptions struct {
	CreateExtensions       bool // pgcrypto, uuid-ossp
	CreateChecks           bool // CHECK-constraint'ы
	CreateIndexes          bool // индексы и UNIQUE
	CreateFKsViaSQL        bool // FK через Exec после AutoMigrate
	CreateUpdatedAtTrigger bool // триггеры updated_at
}

func DefaultMigrateOptions() MigrateOptions {
	return MigrateOptions{
		CreateExtensions:       true,
		CreateChecks:           true,
		CreateIndexes:          true,
		CreateFKsViaSQL:        true,
		CreateUpdatedAtTrigger: true,
	}
}

func MigrateFulfillmentDB(ctx context.Context, db *gorm.DB, log *zap.Logger, opt MigrateOptions) error {
	log.Info("Начало миграции базы резерваций/возвратов")

	// Расширения
	if opt.CreateExtensions {
		log.Info("Создание расширений PostgreSQL")
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
			log.Error("pgcrypto error", zap.Error(err))
			return err
		}
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
			log.Error("uuid-ossp error", zap.Error(err))
			return err
		}
		log.Info("Расширения созданы")
	}

	// Таблицы
	log.Info("Создание таблиц: products, product_variants, stock_reservations, refunds, orders, payments")
	if err := db.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.StockReservation{},
		&models.Refund{},
		&models.Order{},
		&models.Payment{},
	); err != nil {
		log.Error("AutoMigrate error", zap.Error(err))
		return err
	}
	log.Info("Таблицы созданы")

	// Триггеры updated_at
	if opt.CreateUpdatedAtTrigger {
		log.Info("Создание триггеров updated_at")
		if err := db.Exec(`
CREATE OR REPLACE FUNCTION set_updated_at() RETURNS trigger AS $$
BEGIN NEW.updated_at = now(); RETURN NEW; END; $$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_products_updated ON products;
CREATE TRIGGER trg_products_updated BEFORE UPDATE ON products
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_variants_updated ON product_variants;
CREATE TRIGGER trg_variants_updated BEFORE UPDATE ON product_variants
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_refunds_updated ON refunds;
CREATE TRIGGER trg_refunds_updated BEFORE UPDATE ON refunds
FOR EACH ROW EXECUTE FUNCTION set_updated_at();
`).Error; err != nil {
			log.Error("triggers error", zap.Error(err))
			return err
		}
		log.Info("Триггеры созданы")
	}

	// CHECK-и
	if opt.CreateChecks {
		log.Info("Создание CHECK-ограничений")

		if err := db.Exec(`
ALTER TABLE products
	DROP CONSTRAINT IF EXISTS chk_products_stock_non_negative,
	ADD CONSTRAINT chk_products_stock_non_negative
	CHECK (stock >= 0 AND price_cents >= 0);
`).Error; err != nil {
			log.Error("chk products", zap.Error(err))
			return err
		}

		// Инвариант склада: 0 <= reserved <= stock
		if err := db.Exec(`
ALTER TABLE product_variants
	DROP CONSTRAINT IF EXISTS chk_variants_counters,
	ADD CONSTRAINT chk_variants_counters
	CHECK (stock >= 0 AND reserved >= 0 AND reserved <= stock);
`).Error; err != nil {
			log.Error("chk variants", zap.Error(err))
			return err
		}

		if err := db.Exec(`
ALTER TABLE stock_reservations
	DROP CONSTRAINT IF EXISTS chk_reservations_quantity_gt_zero,
	ADD CONSTRAINT chk_reservations_quantity_gt_zero
	CHECK (quantity > 0);
`).Error; err != nil {
			log.Error("chk reservations.qty", zap.Error(err))
			return err
		}

		// Допустимые статусы
		if err := db.Exec(`
ALTER TABLE stock_reservations
	DROP CONSTRAINT IF EXISTS chk_reservations_status_allowed,
	ADD CONSTRAINT chk_reservations_status_allowed
	CHECK (status IN ('RESERVED','CONFIRMED','CANCELLED'));
`).Error; err != nil {
			log.Error("chk reservations.status", zap.Error(err))
			return err
		}

		if err := db.Exec(`
ALTER TABLE refunds
	DROP CONSTRAINT IF EXISTS chk_refunds_amount_gt_zero,
	ADD CONSTRAINT chk_refunds_amount_gt_zero
	CHECK (amount_cents > 0);
`).Error; err != nil {
			log.Error("chk refunds.amount", zap.Error(err))
			return err
		}

		if err := db.Exec(`
ALTER TABLE refunds
	DROP CONSTRAINT IF EXISTS chk_refunds_status_allowed,
	ADD CONSTRAINT chk_refunds_status_allowed
	CHECK (status IN ('REFUND_STATUS_PENDING','REFUND_STATUS_PROCESSING','REFUND_STATUS_COMPLETED','REFUND_STATUS_REJECTED'));
`).Error; err != nil {
			log.Error("chk refunds.status", zap.Error(err))
			return err
		}

		log.Info("CHECK-и созданы")
	}

	// Индексы и уникальности
	if opt.CreateIndexes {
		log.Info("Создание индексов и уникальностей")

		if err := db.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS ux_reservations_reservation_id
ON stock_reservations (reservation_id);
`).Error; err != nil {
			log.Error("ux reservations reservation_id", zap.Error(err))
			return err
		}

		// Частичный индекс для обхода просроченных активных резерваций
		if err := db.Exec(`
CREATE INDEX IF NOT EXISTS ix_reservations_expired_active
ON stock_reservations (expires_at)
WHERE status = 'RESERVED';
`).Error; err != nil {
			log.Error("ix reservations expired_active", zap.Error(err))
			return err
		}

		if err := db.Exec(`
CREATE INDEX IF NOT EXISTS ix_refunds_store_created
ON refunds (store_id, created_at DESC);
`).Error; err != nil {
			log.Error("ix refunds store_created", zap.Error(err))
			return err
		}

		if err := db.Exec(`
CREATE INDEX IF NOT EXISTS ix_refunds_user_created
ON refunds (user_id, created_at DESC);
`).Error; err != nil {
			log.Error("ix refunds user_created", zap.Error(err))
			return err
		}

		log.Info("Индексы созданы")
	}

	// Внешние ключи
	if opt.CreateFKsViaSQL {
		log.Info("Создание внешних ключей")

		if err := db.Exec(`
ALTER TABLE product_variants
  DROP CONSTRAINT IF EXISTS fk_variants_product,
  ADD CONSTRAINT fk_variants_product
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE;
`).Error; err != nil {
			log.Error("fk product_variants.product_id", zap.Error(err))
			return err
		}

		// Резервации не удаляются вместе с товаром — аудиторский след
		if err := db.Exec(`
ALTER TABLE stock_reservations
  DROP CONSTRAINT IF EXISTS fk_reservations_product,
  ADD CONSTRAINT fk_reservations_product
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE RESTRICT;
`).Error; err != nil {
			log.Error("fk stock_reservations.product_id", zap.Error(err))
			return err
		}

		if err := db.Exec(`
ALTER TABLE refunds
  DROP CONSTRAINT IF EXISTS fk_refunds_order,
  ADD CONSTRAINT fk_refunds_order
    FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE RESTRICT;
`).Error; err != nil {
			log.Error("fk refunds.order_id", zap.Error(err))
			return err
		}

		if err := db.Exec(`
ALTER TABLE payments
  DROP CONSTRAINT IF EXISTS fk_payments_order,
  ADD CONSTRAINT fk_payments_order
    FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE;
`).Error; err != nil {
			log.Error("fk payments.order_id", zap.Error(err))
			return err
		}

		log.Info("Внешние ключи созданы")
	}

	log.Info("Миграция базы резерваций/возвратов успешно завершена")
	return nil
}
