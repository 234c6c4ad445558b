package service

import (
	"context"
	"fmt"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Допустимые переходы статуса возврата. COMPLETED и REJECTED терминальны.
var refundTransitions = map[models.RefundStatus][]models.RefundStatus{
	models.RefundStatusPending:    {models.RefundStatusProcessing, models.RefundStatusRejected},
	models.RefundStatusProcessing: {models.RefundStatusCompleted, models.RefundStatusRejected},
	models.RefundStatusCompleted:  {},
	models.RefundStatusRejected:   {},
}

func canTransition(from, to models.RefundStatus) bool {
	for _, s := range refundTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var validReasons = map[models.RefundReason]struct{}{
	models.RefundReasonDamaged:        {},
	models.RefundReasonWrongItem:      {},
	models.RefundReasonNotAsDescribed: {},
	models.RefundReasonLateDelivery:   {},
	models.RefundReasonChangedMind:    {},
	models.RefundReasonOther:          {},
}

type refundService struct {
	repo    *repository.Repository
	gateway PaymentGateway
	events  EventBus
	now     func() time.Time
	log     *zap.Logger
}

func NewRefundService(repo *repository.Repository, gateway PaymentGateway, events EventBus, log *zap.Logger) RefundService {
	return &refundService{
		repo:    repo,
		gateway: gateway,
		events:  events,
		now:     time.Now,
		log:     log,
	}
}

func (s *refundService) requireAuth(ctx context.Context) (uuid.UUID, Role, error) {
	uid, ok := UserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, "", ErrUnauthorized
	}
	role, ok := RoleFromContext(ctx)
	if !ok {
		role = RoleCustomer
	}
	return uid, role, nil
}

func (s *refundService) CreateRefundRequest(ctx context.Context, in CreateRefundInput) (*models.Refund, error) {
	userID, _, err := s.requireAuth(ctx)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.Orders.GetByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID {
		return nil, ErrForbidden
	}

	if in.AmountCents <= 0 || in.AmountCents > order.TotalPriceCents {
		return nil, ErrAmountInvalid
	}
	if _, ok := validReasons[in.Reason]; !ok {
		return nil, ErrReasonInvalid
	}

	payment, err := s.repo.Payments.GetByOrderID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	now := s.now()
	rf := &models.Refund{
		OrderID:     order.ID,
		UserID:      userID,
		StoreID:     order.StoreID,
		PaymentID:   payment.ID,
		AmountCents: in.AmountCents,
		Reason:      in.Reason,
		Status:      models.RefundStatusPending,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Refunds.Create(ctx, rf); err != nil {
		return nil, err
	}

	if s.events != nil {
		_ = s.events.PublishRefundRequested(ctx, RefundRequestedEvent{
			RefundID:    rf.ID,
			OrderID:     rf.OrderID,
			UserID:      rf.UserID,
			AmountCents: rf.AmountCents,
			Reason:      rf.Reason,
			CreatedAt:   rf.CreatedAt,
		})
	}
	return rf, nil
}

func (s *refundService) UpdateRefundStatus(ctx context.Context, in UpdateRefundStatusInput) (*models.Refund, error) {
	rf, err := s.repo.Refunds.GetByID(ctx, in.RefundID)
	if err != nil {
		return nil, err
	}
	if rf == nil {
		return nil, ErrRefundNotFound
	}

	if !canTransition(rf.Status, in.NewStatus) {
		return nil, ErrIllegalTransition
	}

	fields := map[string]any{
		"status":       in.NewStatus,
		"updated_at":   s.now(),
		"processed_by": in.UpdatedBy,
	}
	if in.Comment != "" {
		fields["comment"] = in.Comment
	}

	// Переход в COMPLETED с автопроведением: сначала шлюз, потом статус.
	// Если шлюз упал — возврат остаётся в PROCESSING, оператор повторит.
	if in.NewStatus == models.RefundStatusCompleted && in.ProcessAutomatically {
		res, err := s.callGateway(ctx, rf)
		if err != nil {
			return nil, err
		}
		fields["gateway_refund_id"] = res.ID
	}

	ok, err := s.repo.Refunds.UpdateStatusFrom(ctx, rf.ID, rf.Status, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		// статус сменили параллельно — перечитанный переход уже нелегален
		return nil, ErrIllegalTransition
	}

	if s.events != nil {
		by := in.UpdatedBy
		_ = s.events.PublishRefundStatusChanged(ctx, RefundStatusChangedEvent{
			RefundID:  rf.ID,
			OldStatus: rf.Status,
			NewStatus: in.NewStatus,
			UpdatedBy: &by,
			ChangedAt: s.now(),
		})
	}

	return s.repo.Refunds.GetByID(ctx, rf.ID)
}

func (s *refundService) ProcessRefundWithStripe(ctx context.Context, in ProcessRefundInput) (GatewayRefund, error) {
	rf, err := s.repo.Refunds.GetByID(ctx, in.RefundID)
	if err != nil {
		return GatewayRefund{}, err
	}
	if rf == nil {
		return GatewayRefund{}, ErrRefundNotFound
	}

	if rf.Status == models.RefundStatusCompleted {
		return GatewayRefund{}, ErrAlreadyRefunded
	}
	if !in.Force && rf.Status != models.RefundStatusProcessing {
		return GatewayRefund{}, ErrRefundNotInProcess
	}

	res, err := s.callGateway(ctx, rf)
	if err != nil {
		return GatewayRefund{}, err
	}

	by := in.ProcessedBy
	fields := map[string]any{
		"status":            models.RefundStatusCompleted,
		"gateway_refund_id": res.ID,
		"processed_by":      by,
		"updated_at":        s.now(),
	}
	if _, err := s.repo.Refunds.UpdateStatusFrom(ctx, rf.ID, rf.Status, fields); err != nil {
		// Деньги уже вернулись, а статус не записался — логируем с контекстом,
		// шлюзовый id остаётся в результате для ручного разбора.
		s.log.Error("возврат проведён шлюзом, но статус не сохранён",
			zap.String("refund_id", rf.ID.String()),
			zap.String("gateway_refund_id", res.ID),
			zap.Error(err))
		return res, err
	}

	if s.events != nil {
		_ = s.events.PublishRefundStatusChanged(ctx, RefundStatusChangedEvent{
			RefundID:  rf.ID,
			OldStatus: rf.Status,
			NewStatus: models.RefundStatusCompleted,
			UpdatedBy: &by,
			ChangedAt: s.now(),
		})
	}
	return res, nil
}

func (s *refundService) callGateway(ctx context.Context, rf *models.Refund) (GatewayRefund, error) {
	payment, err := s.repo.Payments.GetByOrderID(ctx, rf.OrderID)
	if err != nil {
		return GatewayRefund{}, err
	}
	if payment == nil {
		return GatewayRefund{}, ErrPaymentNotFound
	}

	res, err := s.gateway.Refund(ctx, RefundParams{
		RefundID:    rf.ID,
		PaymentRef:  payment.ProviderChargeID,
		AmountCents: rf.AmountCents,
	})
	if err != nil {
		s.log.Error("ошибка шлюза при возврате",
			zap.String("refund_id", rf.ID.String()),
			zap.String("payment_ref", payment.ProviderChargeID),
			zap.Error(err))
		return GatewayRefund{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	return res, nil
}

func (s *refundService) GetStoreRefunds(ctx context.Context, storeID uuid.UUID, f repository.RefundListFilter) ([]models.Refund, int64, error) {
	_, role, err := s.requireAuth(ctx)
	if err != nil {
		return nil, 0, err
	}
	if role != RoleAdmin && role != RoleVendor {
		return nil, 0, ErrForbidden
	}
	return s.repo.Refunds.ListByStore(ctx, storeID, f)
}

func (s *refundService) GetUserRefunds(ctx context.Context) ([]models.Refund, error) {
	userID, _, err := s.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.Refunds.ListByUser(ctx, userID)
}

func (s *refundService) GetRefundAnalytics(ctx context.Context, from, to time.Time, storeID *uuid.UUID) (*RefundAnalytics, error) {
	_, role, err := s.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if role != RoleAdmin && role != RoleVendor {
		return nil, ErrForbidden
	}

	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}

	rows, err := s.repo.Refunds.SummarizeByStatus(ctx, from, to, storeID)
	if err != nil {
		return nil, err
	}

	out := &RefundAnalytics{From: from, To: to, ByStatus: rows}
	for _, r := range rows {
		out.TotalCount += r.Count
		out.TotalAmountCents += r.AmountCents
	}
	return out, nil
}
