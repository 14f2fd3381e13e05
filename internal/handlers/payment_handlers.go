package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/openpayflow/orchestrator/internal/faults"
	"github.com/openpayflow/orchestrator/internal/middleware"
	"github.com/openpayflow/orchestrator/internal/models"
	"github.com/openpayflow/orchestrator/internal/services"
)

// PaymentHandler serves every /v1/payments route.
type PaymentHandler struct {
	db        *gorm.DB
	payment   *services.PaymentService
	merchants *services.MerchantLookup
}

func NewPaymentHandler(db *gorm.DB, payment *services.PaymentService, merchants *services.MerchantLookup) *PaymentHandler {
	return &PaymentHandler{db: db, payment: payment, merchants: merchants}
}

type createPaymentRequest struct {
	Amount     int64                  `json:"amount"`
	Currency   string                 `json:"currency"`
	Gateway    string                 `json:"gateway"`
	MerchantAPIKey string             `json:"merchantApiKey"`
	Metadata   map[string]interface{} `json:"metadata"`
	CustomerID string                 `json:"customerId"`
	MethodID   string                 `json:"methodId"`
}

type successEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// Create handles POST /v1/payments.
func (h *PaymentHandler) Create(c echo.Context) error {
	var req createPaymentRequest
	if err := c.Bind(&req); err != nil {
		return faults.Validation("INVALID_BODY", "request body could not be parsed")
	}

	idempotencyKey := c.Request().Header.Get("Idempotency-Key")

	payment, err := h.payment.CreatePayment(c.Request().Context(), services.CreatePaymentInput{
		Amount:         req.Amount,
		Currency:       req.Currency,
		Gateway:        req.Gateway,
		MerchantAPIKey: middleware.MerchantAPIKey(c, req.MerchantAPIKey),
		Metadata:       req.Metadata,
		CustomerID:     req.CustomerID,
		MethodID:       req.MethodID,
	}, idempotencyKey)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, successEnvelope{Success: true, Data: payment})
}

// Get handles GET /v1/payments/:id?merchantApiKey=….
func (h *PaymentHandler) Get(c echo.Context) error {
	id := c.Param("id")
	apiKey := c.QueryParam("merchantApiKey")

	merchant, err := h.authenticate(c, apiKey)
	if err != nil {
		return err
	}

	var payment models.Payment
	err = h.db.WithContext(c.Request().Context()).
		Where("id = ? AND merchant_id = ?", id, merchant.ID).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return faults.Validation("PAYMENT_NOT_FOUND", "no payment %q found", id)
		}
		return faults.Internal("failed to load payment", err)
	}

	var attempts []models.PaymentAttempt
	h.db.WithContext(c.Request().Context()).
		Where("payment_id = ?", payment.ID).
		Order("attempt_no desc").Limit(5).Find(&attempts)
	payment.Attempts = attempts

	var refunds []models.Refund
	h.db.WithContext(c.Request().Context()).Where("payment_id = ?", payment.ID).Find(&refunds)
	payment.Refunds = refunds

	return c.JSON(http.StatusOK, successEnvelope{Success: true, Data: payment})
}

type paginationEnvelope struct {
	Data       []models.Payment `json:"data"`
	Pagination pagination        `json:"pagination"`
}

type pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

// List handles GET /v1/payments?merchantApiKey=…&limit&offset&status&gateway&startDate&endDate.
func (h *PaymentHandler) List(c echo.Context) error {
	apiKey := c.QueryParam("merchantApiKey")
	merchant, err := h.authenticate(c, apiKey)
	if err != nil {
		return err
	}

	limit := queryInt(c, "limit", 20, 1, 100)
	offset := queryInt(c, "offset", 0, 0, 1<<31-1)

	query := h.db.WithContext(c.Request().Context()).Model(&models.Payment{}).Where("merchant_id = ?", merchant.ID)
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if gw := c.QueryParam("gateway"); gw != "" {
		query = query.Where("gateway = ?", gw)
	}
	if start := c.QueryParam("startDate"); start != "" {
		if t, err := time.Parse(time.RFC3339, start); err == nil {
			query = query.Where("created_at >= ?", t)
		}
	}
	if end := c.QueryParam("endDate"); end != "" {
		if t, err := time.Parse(time.RFC3339, end); err == nil {
			query = query.Where("created_at <= ?", t)
		}
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return faults.Internal("failed to count payments", err)
	}

	var payments []models.Payment
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&payments).Error; err != nil {
		return faults.Internal("failed to list payments", err)
	}

	return c.JSON(http.StatusOK, paginationEnvelope{
		Data: payments,
		Pagination: pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: int64(offset+len(payments)) < total,
		},
	})
}

func (h *PaymentHandler) authenticate(c echo.Context, apiKey string) (*models.Merchant, error) {
	merchant, err := h.merchants.Lookup(c.Request().Context(), services.HashAPIKey(apiKey))
	if err != nil {
		return nil, faults.Auth("API key not recognized")
	}
	return merchant, nil
}

func queryInt(c echo.Context, name string, def, min, max int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
