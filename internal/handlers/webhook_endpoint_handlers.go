package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/openpayflow/orchestrator/internal/faults"
	"github.com/openpayflow/orchestrator/internal/middleware"
	"github.com/openpayflow/orchestrator/internal/models"
	"github.com/openpayflow/orchestrator/internal/services"
)

// WebhookEndpointHandler serves every /v1/webhook-endpoints route.
type WebhookEndpointHandler struct {
	db        *gorm.DB
	merchants *services.MerchantLookup
}

func NewWebhookEndpointHandler(db *gorm.DB, merchants *services.MerchantLookup) *WebhookEndpointHandler {
	return &WebhookEndpointHandler{db: db, merchants: merchants}
}

func (h *WebhookEndpointHandler) authenticate(c echo.Context, apiKey string) (*models.Merchant, error) {
	merchant, err := h.merchants.Lookup(c.Request().Context(), services.HashAPIKey(apiKey))
	if err != nil {
		return nil, faults.Auth("API key not recognized")
	}
	return merchant, nil
}

type createEndpointRequest struct {
	URL            string   `json:"url"`
	Secret         string   `json:"secret"`
	Events         []string `json:"events"`
	MerchantAPIKey string   `json:"merchantApiKey"`
}

// Create handles POST /v1/webhook-endpoints.
func (h *WebhookEndpointHandler) Create(c echo.Context) error {
	var req createEndpointRequest
	if err := c.Bind(&req); err != nil {
		return faults.Validation("INVALID_BODY", "request body could not be parsed")
	}
	if req.URL == "" {
		return faults.Validation("MISSING_URL", "url is required")
	}
	if len(req.Secret) < 8 {
		return faults.Validation("SECRET_TOO_SHORT", "secret must be at least 8 characters")
	}
	if len(req.Events) == 0 {
		return faults.Validation("MISSING_EVENTS", "at least one event type is required")
	}

	events := make(models.EventTypeList, 0, len(req.Events))
	for _, e := range req.Events {
		et := models.EventType(e)
		if !models.KnownEventTypes[et] {
			return faults.Validation("UNKNOWN_EVENT_TYPE", "unknown event type %q", e)
		}
		events = append(events, et)
	}

	merchant, err := h.authenticate(c, middleware.MerchantAPIKey(c, req.MerchantAPIKey))
	if err != nil {
		return err
	}

	endpoint := models.WebhookEndpoint{
		MerchantID: merchant.ID,
		URL:        req.URL,
		Secret:     req.Secret,
		Events:     events,
		IsActive:   true,
	}
	if err := h.db.WithContext(c.Request().Context()).Create(&endpoint).Error; err != nil {
		return faults.Internal("failed to create webhook endpoint", err)
	}

	return c.JSON(http.StatusCreated, successEnvelope{Success: true, Data: endpoint})
}

func (h *WebhookEndpointHandler) load(c echo.Context, apiKey string) (*models.WebhookEndpoint, error) {
	merchant, err := h.authenticate(c, apiKey)
	if err != nil {
		return nil, err
	}
	var endpoint models.WebhookEndpoint
	err = h.db.WithContext(c.Request().Context()).
		Where("id = ? AND merchant_id = ?", c.Param("id"), merchant.ID).
		First(&endpoint).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faults.Validation("ENDPOINT_NOT_FOUND", "no webhook endpoint %q found", c.Param("id"))
		}
		return nil, faults.Internal("failed to load webhook endpoint", err)
	}
	return &endpoint, nil
}

// Get handles GET /v1/webhook-endpoints/:id?merchantApiKey=….
func (h *WebhookEndpointHandler) Get(c echo.Context) error {
	endpoint, err := h.load(c, c.QueryParam("merchantApiKey"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successEnvelope{Success: true, Data: endpoint})
}

type updateEndpointRequest struct {
	URL            *string  `json:"url"`
	Secret         *string  `json:"secret"`
	Events         []string `json:"events"`
	IsActive       *bool    `json:"isActive"`
	MerchantAPIKey string   `json:"merchantApiKey"`
}

// Update handles PATCH /v1/webhook-endpoints/:id.
func (h *WebhookEndpointHandler) Update(c echo.Context) error {
	var req updateEndpointRequest
	if err := c.Bind(&req); err != nil {
		return faults.Validation("INVALID_BODY", "request body could not be parsed")
	}

	apiKey := req.MerchantAPIKey
	if apiKey == "" {
		apiKey = c.QueryParam("merchantApiKey")
	}
	endpoint, err := h.load(c, apiKey)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if req.URL != nil {
		updates["url"] = *req.URL
	}
	if req.Secret != nil {
		if len(*req.Secret) < 8 {
			return faults.Validation("SECRET_TOO_SHORT", "secret must be at least 8 characters")
		}
		updates["secret"] = *req.Secret
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.Events != nil {
		events := make(models.EventTypeList, 0, len(req.Events))
		for _, e := range req.Events {
			et := models.EventType(e)
			if !models.KnownEventTypes[et] {
				return faults.Validation("UNKNOWN_EVENT_TYPE", "unknown event type %q", e)
			}
			events = append(events, et)
		}
		updates["events"] = events
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(c.Request().Context()).Model(endpoint).Updates(updates).Error; err != nil {
			return faults.Internal("failed to update webhook endpoint", err)
		}
	}

	return c.JSON(http.StatusOK, successEnvelope{Success: true, Data: endpoint})
}

// Delete handles DELETE /v1/webhook-endpoints/:id.
func (h *WebhookEndpointHandler) Delete(c echo.Context) error {
	endpoint, err := h.load(c, c.QueryParam("merchantApiKey"))
	if err != nil {
		return err
	}
	if err := h.db.WithContext(c.Request().Context()).Delete(endpoint).Error; err != nil {
		return faults.Internal("failed to delete webhook endpoint", err)
	}
	return c.NoContent(http.StatusOK)
}

// Deliveries handles GET /v1/webhook-endpoints/:id/deliveries — a
// read-only history listing, additive per SPEC_FULL.md §7.
func (h *WebhookEndpointHandler) Deliveries(c echo.Context) error {
	endpoint, err := h.load(c, c.QueryParam("merchantApiKey"))
	if err != nil {
		return err
	}

	limit := queryInt(c, "limit", 20, 1, 100)
	offset := queryInt(c, "offset", 0, 0, 1<<31-1)

	var deliveries []models.WebhookDelivery
	if err := h.db.WithContext(c.Request().Context()).
		Where("endpoint_id = ?", endpoint.ID).
		Order("created_at desc").Limit(limit).Offset(offset).
		Find(&deliveries).Error; err != nil {
		return faults.Internal("failed to list deliveries", err)
	}

	return c.JSON(http.StatusOK, successEnvelope{Success: true, Data: deliveries})
}
