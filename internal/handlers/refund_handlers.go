package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openpayflow/orchestrator/internal/faults"
	"github.com/openpayflow/orchestrator/internal/middleware"
	"github.com/openpayflow/orchestrator/internal/services"
)

// RefundHandler serves POST /v1/refunds.
type RefundHandler struct {
	refund *services.RefundService
}

func NewRefundHandler(refund *services.RefundService) *RefundHandler {
	return &RefundHandler{refund: refund}
}

type createRefundRequest struct {
	PaymentID      string `json:"paymentId"`
	Amount         int64  `json:"amount"`
	Reason         string `json:"reason"`
	MerchantAPIKey string `json:"merchantApiKey"`
}

// Create handles POST /v1/refunds.
func (h *RefundHandler) Create(c echo.Context) error {
	var req createRefundRequest
	if err := c.Bind(&req); err != nil {
		return faults.Validation("INVALID_BODY", "request body could not be parsed")
	}
	if req.PaymentID == "" {
		return faults.Validation("MISSING_PAYMENT_ID", "paymentId is required")
	}

	refund, err := h.refund.CreateRefund(c.Request().Context(), services.CreateRefundInput{
		PaymentID:      req.PaymentID,
		Amount:         req.Amount,
		Reason:         req.Reason,
		MerchantAPIKey: middleware.MerchantAPIKey(c, req.MerchantAPIKey),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, successEnvelope{Success: true, Data: refund})
}
