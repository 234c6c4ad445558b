package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/repository"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/sweeper"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	stock   service.StockService
	refunds service.RefundService
	sweeper *sweeper.Sweeper
	log     *zap.Logger
}

func NewHandler(stock service.StockService, refunds service.RefundService, sw *sweeper.Sweeper, log *zap.Logger) *Handler {
	return &Handler{
		stock:   stock,
		refunds: refunds,
		sweeper: sw,
		log:     log,
	}
}

// abortWithServiceError переводит sentinel-ошибки сервиса в HTTP-ответ.
func (h *Handler) abortWithServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, NewUnauthorizedError(err.Error()))
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, NewForbiddenError(err.Error()))
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrVariantNotFound),
		errors.Is(err, service.ErrReservationNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrRefundNotFound),
		errors.Is(err, service.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, NewNotFoundError(err.Error()))
	case errors.Is(err, service.ErrOutOfStock):
		c.JSON(http.StatusConflict, NewConflictError(err.Error()))
	case errors.Is(err, service.ErrReservationExpired),
		errors.Is(err, service.ErrAlreadyRefunded),
		errors.Is(err, service.ErrIllegalTransition):
		c.JSON(http.StatusConflict, NewConflictError(err.Error()))
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrSessionRequired),
		errors.Is(err, service.ErrVariantRequired),
		errors.Is(err, service.ErrInactiveProduct),
		errors.Is(err, service.ErrAmountInvalid),
		errors.Is(err, service.ErrReasonInvalid),
		errors.Is(err, service.ErrRefundNotInProcess):
		c.JSON(http.StatusBadRequest, NewValidationError(err.Error()))
	case errors.Is(err, service.ErrGateway):
		h.log.Error("Gateway error", zap.Error(err))
		c.JSON(http.StatusBadGateway, NewGatewayError("payment gateway refund failed"))
	default:
		h.log.Error("Internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewInternalError("internal error"))
	}
}

// ValidateStock godoc
// @Summary Проверка доступности товара
// @Description Возвращает авторитетные цену и доступный остаток по товару/варианту
// @Tags stock
// @Accept json
// @Produce json
// @Param request body ValidateStockRequest true "Товар и количество"
// @Success 200 {object} ValidateStockResponse
// @Failure 400 {object} BaseError
// @Failure 404 {object} BaseError
// @Failure 409 {object} BaseError
// @Router /api/v1/stock/validate [post]
func (h *Handler) ValidateStock(c *gin.Context) {
	var req ValidateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewValidationError("invalid request body"))
		return
	}

	productID, variantID, ok := parseProductVariant(c, req.ProductID, req.VariantID)
	if !ok {
		return
	}

	res, err := h.stock.ValidateProduct(c.Request.Context(), productID, variantID, req.Quantity)
	if err != nil {
		// недостаток остатка — валидный ответ, а не ошибка уровня HTTP
		if errors.Is(err, service.ErrOutOfStock) {
			c.JSON(http.StatusOK, ValidateStockResponse{Valid: false})
			return
		}
		h.abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ValidateStockResponse{
		Valid:      true,
		PriceCents: res.PriceCents,
		Available:  res.Available,
	})
}

// ReserveStock godoc
// @Summary Резервация остатка
// @Description Создаёт временный hold на остаток товара на время оформления заказа
// @Tags reservations
// @Accept json
// @Produce json
// @Param request body ReserveStockRequest true "Параметры резервации"
// @Success 201 {object} ReserveStockResponse
// @Failure 400 {object} BaseError
// @Failure 404 {object} BaseError
// @Failure 409 {object} BaseError
// @Router /api/v1/reservations [post]
func (h *Handler) ReserveStock(c *gin.Context) {
	var req ReserveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewValidationError("invalid request body"))
		return
	}

	ctx := c.Request.Context()
	sessionID, ok := service.SessionIDFromContext(ctx)
	if !ok || sessionID == "" {
		c.JSON(http.StatusBadRequest, NewValidationError("X-Session-Id header required"))
		return
	}

	productID, variantID, ok := parseProductVariant(c, req.ProductID, req.VariantID)
	if !ok {
		return
	}

	in := service.ReserveInput{
		ProductID: productID,
		VariantID: variantID,
		Quantity:  req.Quantity,
		SessionID: sessionID,
		TTL:       time.Duration(req.TimeoutMinutes) * time.Minute,
	}
	if uid, ok := service.UserIDFromContext(ctx); ok {
		in.UserID = &uid
	}

	reservationID, err := h.stock.Reserve(ctx, in)
	if err != nil {
		h.abortWithServiceError(c, err)
		return
	}

	rsv, err := h.stock.GetReservation(ctx, reservationID)
	if err != nil {
		h.abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ReserveStockResponse{
		ReservationID: reservationID,
		ExpiresAt:     rsv.ExpiresAt,
	})
}

// GetReservation godoc
// @Summary Получение резервации
// @Tags reservations
// @Produce json
// @Param id path string true "reservation id"
// @Success 200 {object} ReservationResponse
// @Failure 404 {object} BaseError
// @Router /api/v1/reservations/{id} [get]
func (h *Handler) GetReservation(c *gin.Context) {
	rsv, err := h.stock.GetReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(rsv))
}

// ConfirmReservation godoc
// @Summary Подтверждение резервации
// @Description Переводит резервацию в CONFIRMED после успешной оплаты; счётчики склада не меняются
// @Tags reservations
// @Produce json
// @Param id path string true "reservation id"
// @Success 200 {object} ReservationActionResponse
// @Failure 409 {object} BaseError
// @Router /api/v1/reservations/{id}/confirm [post]
func (h *Handler) ConfirmReservation(c *gin.Context) {
	found, err := h.stock.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ReservationActionResponse{Found: found})
}

// ReleaseReservation godoc
// @Summary Отмена резервации
// @Description Переводит резервацию в CANCELLED и возвращает остаток на склад
// @Tags reservations
// @Produce json
// @Param id path string true "reservation id"
// @Success 200 {object} ReservationActionResponse
// @Router /api/v1/reservations/{id}/release [post]
func (h *Handler) ReleaseReservation(c *gin.Context) {
	found, err := h.stock.Release(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ReservationActionResponse{Found: found})
}

// ListSessionReservations godoc
// @Summary Резервации текущей сессии
// @Tags reservations
// @Produce json
// @Success 200 {array} ReservationResponse
// @Router /api/v1/reservations [get]
func (h *Handler) ListSessionReservations(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID, ok := service.SessionIDFromContext(ctx)
	if !ok || sessionID == "" {
		c.JSON(http.StatusBadRequest, NewValidationError("X-Session-Id header required"))
		return
	}

	list, err := h.stock.ListSessionReservations(ctx, sessionID)
	if err != nil {
		h.abortWithServiceError(c, err)
		return
	}
	out := make([]ReservationResponse, 0, len(list))
	for i := range list {
		out = append(out, toReservationResponse(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

// CleanupExpired godoc
// @Summary Освобождение просроченных резерваций
// @Description Ручной запуск обхода просроченных резерваций (обычно он идёт по расписанию)
// @Tags reservations
// @Produce json
// @Success 200 {object} CleanupResponse
// @Failure 403 {object} BaseError
// @Router /api/v1/reservations/cleanup [post]
func (h *Handler) CleanupExpired(c *gin.Context) {
	released, err := h.sweeper.CleanupExpired(c.Request.Context())
	if err != nil {
		// частичные ошибки не отменяют уже освобождённое
		h.log.Error("cleanup finished with errors", zap.Int("released", released), zap.Error(err))
	}
	c.JSON(http.StatusOK, CleanupResponse{Released: released})
}

// CreateRefund godoc
// @Summary Запрос на возврат
// @Description Создаёт заявку на возврат по заказу текущего пользователя
// @Tags refunds
// @Accept json
// @Produce json
// @Param request body CreateRefundRequest true "Параметры возврата"
// @Success 201 {object} RefundResponse
// @Failure 400 {object} BaseError
// @Failure 403 {object} BaseError
// @Failure 404 {object} BaseError
// @Router /api/v1/refunds [post]
func (h *Handler) CreateRefund(c *gin.Context) {
	var req CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewValidationError("invalid request body"))
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewValidationError("invalid order_id"))
		return
	}

	in := service.CreateRefundInput{
		OrderID:     orderID,
		AmountCents: req.AmountCents,
		Reason:      models.RefundReason(req.Reason),
		Description: req.Description,
		Quantity:    req.Quantity,
	}
	if req.ProductID != "" {
		pid, err := uuid.Parse(req.ProductID)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewValidationError("invalid product_id"))
			return
		}
		in.ProductID = &pid
	}

	rf, err := h.refunds.CreateRefundRequest(c.Request.Context(), in)
	if err != nil {
		h.abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRefundResponse(rf))
}

// UpdateRefundStatus godoc
// @Summary Смена статуса возврата
// @Description Переводит возврат по машине состояний pending → processing → completed/rejected
// @Tags refunds
// @Accept json
// @Produce json
// @Param id path string true "refund id"
// @Param request body UpdateRefundStatusRequest true "Новый статус"
// @Success 200 {object} RefundResponse
// @Failure 400 {object} BaseError
// @Failure 409 {object} BaseError
// @Failure 502 {object} BaseError
// @Router /api/v1/refunds/{id}/status [patch]
func (h *Handler) UpdateRefundStatus(c *gin.Context) {
	var req UpdateRefundStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewValidationError("invalid request body"))
		return
	}

	refundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewValidationError("invalid refund id"))
		return
	}

	ctx := c.Request.Context()
	updatedBy, ok := service.UserIDFromContext(ctx)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewUnauthorizedError("missing user identity"))
		return
	}

	rf, err := h.refunds.UpdateRefundStatus(ctx, service.UpdateRefundStatusInput{
		RefundID:             refundID,
		NewStatus:            models.RefundStatus(req.NewStatus),
		UpdatedBy:            updatedBy,
		Comment:              req.Comment,
		ProcessAutomatically: req.ProcessAutomatically,
	})
	if err != nil {
		h.abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRefundResponse(rf))
}

// ProcessRefund godoc
// @Summary Проведение возврата через Stripe
// @Description Ручной запуск возврата на стороне платёжного шлюза
// @Tags refunds
// @Accept json
// @Produce json
// @Param id path string true "refund id"
// @Param request body ProcessRefundRequest false "Опции"
// @Success 200 {object} ProcessRefundResponse
// @Failure 409 {object} BaseError
// @Failure 502 {object} BaseError
// @Router /api/v1/refunds/{id}/process [post]
func (h *Handler) ProcessRefund(c *gin.Context) {
	var req ProcessRefundRequest
	_ = c.ShouldBindJSON(&req)

	refundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewValidationError("invalid refund id"))
		return
	}

	ctx := c.Request.Context()
	processedBy, ok := service.UserIDFromContext(ctx)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewUnauthorizedError("missing user identity"))
		return
	}

	res, err := h.refunds.ProcessRefundWithStripe(ctx, service.ProcessRefundInput{
		RefundID:    refundID,
		ProcessedBy: processedBy,
		Force:       req.Force,
	})
	if err != nil {
		h.abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProcessRefundResponse{
		GatewayRefundID: res.ID,
		GatewayStatus:   res.Status,
	})
}

// GetUserRefunds godoc
// @Summary Возвраты текущего пользователя
// @Tags refunds
// @Produce json
// @Success 200 {object} RefundListResponse
// @Router /api/v1/refunds/my [get]
func (h *Handler) GetUserRefunds(c *gin.Context) {
	list, err := h.refunds.GetUserRefunds(c.Request.Context())
	if err != nil {
		h.abortWithServiceError(c, err)
		return
	}
	out := RefundListResponse{Refunds: make([]RefundResponse, 0, len(list)), Total: int64(len(list))}
	for i := range list {
		out.Refunds = append(out.Refunds, toRefundResponse(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

// GetStoreRefunds godoc
// @Summary Возвраты магазина
// @Tags refunds
// @Produce json
// @Param id path string true "store id"
// @Param status query string false "фильтр по статусу"
// @Param limit query int false "размер страницы"
// @Param offset query int false "смещение"
// @Success 200 {object} RefundListResponse
// @Failure 403 {object} BaseError
// @Router /api/v1/stores/{id}/refunds [get]
func (h *Handler) GetStoreRefunds(c *gin.Context) {
	storeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewValidationError("invalid store id"))
		return
	}

	f := repository.RefundListFilter{
		Limit:  queryInt(c, "limit", 20),
		Offset: queryInt(c, "offset", 0),
	}
	if s := c.Query("status"); s != "" {
		st := models.RefundStatus(s)
		f.Status = &st
	}

	list, total, err := h.refunds.GetStoreRefunds(c.Request.Context(), storeID, f)
	if err != nil {
		h.abortWithServiceError(c, err)
		return
	}
	out := RefundListResponse{Refunds: make([]RefundResponse, 0, len(list)), Total: total}
	for i := range list {
		out.Refunds = append(out.Refunds, toRefundResponse(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

// GetRefundAnalytics godoc
// @Summary Аналитика возвратов
// @Description Количество и суммы возвратов по статусам за период
// @Tags refunds
// @Produce json
// @Param from query string false "начало периода (RFC3339)"
// @Param to query string false "конец периода (RFC3339)"
// @Param store_id query string false "магазин"
// @Success 200 {object} RefundAnalyticsResponse
// @Failure 403 {object} BaseError
// @Router /api/v1/refunds/analytics [get]
func (h *Handler) GetRefundAnalytics(c *gin.Context) {
	var from, to time.Time
	if s := c.Query("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewValidationError("invalid from"))
			return
		}
		from = t
	}
	if s := c.Query("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewValidationError("invalid to"))
			return
		}
		to = t
	}

	var storeID *uuid.UUID
	if s := c.Query("store_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewValidationError("invalid store_id"))
			return
		}
		storeID = &id
	}

	a, err := h.refunds.GetRefundAnalytics(c.Request.Context(), from, to, storeID)
	if err != nil {
		h.abortWithServiceError(c, err)
		return
	}

	out := RefundAnalyticsResponse{
		From:             a.From,
		To:               a.To,
		TotalCount:       a.TotalCount,
		TotalAmountCents: a.TotalAmountCents,
		ByStatus:         make([]StatusSummaryResponse, 0, len(a.ByStatus)),
	}
	for _, r := range a.ByStatus {
		out.ByStatus = append(out.ByStatus, StatusSummaryResponse{
			Status:      string(r.Status),
			Count:       r.Count,
			AmountCents: r.AmountCents,
		})
	}
	c.JSON(http.StatusOK, out)
}

func parseProductVariant(c *gin.Context, product, variant string) (uuid.UUID, *uuid.UUID, bool) {
	productID, err := uuid.Parse(product)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewValidationError("invalid product_id"))
		return uuid.Nil, nil, false
	}
	if variant == "" {
		return productID, nil, true
	}
	vid, err := uuid.Parse(variant)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewValidationError("invalid variant_id"))
		return uuid.Nil, nil, false
	}
	return productID, &vid, true
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}
