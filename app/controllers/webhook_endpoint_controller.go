package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/causekit/causekit/app/models"
	"github.com/causekit/causekit/app/repository"
	"github.com/causekit/causekit/internal/pkg/usercontext"
	"github.com/causekit/causekit/internal/pkg/webhook"
)

const maxDeliveryPageSize = 100

type webhookEndpointRequest struct {
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Events      []string `json:"events"`
	IsActive    *bool    `json:"is_active"`
}

// HandleCreateWebhookEndpoint registers a new webhook endpoint. The signing
// secret is generated server-side and returned in this response only.
func HandleCreateWebhookEndpoint(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req webhookEndpointRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if len(req.Events) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "At least one event type is required"})
	}
	if guard := webhook.ValidateDestination(req.URL); !guard.Allowed {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "invalid_url", "message": guard.Reason})
	}

	secret, err := models.GenerateWebhookSecret()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to generate secret"})
	}

	endpoint := &models.WebhookEndpoint{
		UserID:      userCtx.UserID,
		URL:         req.URL,
		Description: req.Description,
		Secret:      secret,
		IsActive:    true,
	}
	if req.IsActive != nil {
		endpoint.IsActive = *req.IsActive
	}
	if err := endpoint.SetEventList(req.Events); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid event list"})
	}
	if err := endpoint.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	repo := repository.GetGlobalFactory().GetWebhookEndpointRepository()
	if err := repo.Create(endpoint); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create endpoint"})
	}

	resp := webhookEndpointJSON(endpoint)
	resp["secret"] = secret
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// HandleListWebhookEndpoints lists the caller's endpoints. Secrets are never
// included.
func HandleListWebhookEndpoints(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	repo := repository.GetGlobalFactory().GetWebhookEndpointRepository()
	endpoints, err := repo.ListByUser(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list endpoints"})
	}

	out := make([]fiber.Map, 0, len(endpoints))
	for i := range endpoints {
		out = append(out, webhookEndpointJSON(&endpoints[i]))
	}
	return c.JSON(fiber.Map{"endpoints": out})
}

// HandleGetWebhookEndpoint returns one endpoint owned by the caller.
func HandleGetWebhookEndpoint(c *fiber.Ctx) error {
	endpoint, errResp := loadOwnEndpoint(c)
	if endpoint == nil {
		return errResp
	}
	return c.JSON(webhookEndpointJSON(endpoint))
}

// HandleUpdateWebhookEndpoint updates URL, description, event subscriptions
// or active state. A changed URL passes through the destination guard again.
func HandleUpdateWebhookEndpoint(c *fiber.Ctx) error {
	endpoint, errResp := loadOwnEndpoint(c)
	if endpoint == nil {
		return errResp
	}

	var req webhookEndpointRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}

	if req.URL != "" && req.URL != endpoint.URL {
		if guard := webhook.ValidateDestination(req.URL); !guard.Allowed {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "invalid_url", "message": guard.Reason})
		}
		endpoint.URL = req.URL
	}
	if req.Description != "" {
		endpoint.Description = req.Description
	}
	if len(req.Events) > 0 {
		if err := endpoint.SetEventList(req.Events); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid event list"})
		}
	}
	if req.IsActive != nil {
		endpoint.IsActive = *req.IsActive
	}
	if err := endpoint.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	repo := repository.GetGlobalFactory().GetWebhookEndpointRepository()
	if err := repo.Update(endpoint); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update endpoint"})
	}
	return c.JSON(webhookEndpointJSON(endpoint))
}

// HandleDeleteWebhookEndpoint soft-deletes an endpoint. Delivery history
// stays queryable; pending retries are dropped by the retry sweep.
func HandleDeleteWebhookEndpoint(c *fiber.Ctx) error {
	endpoint, errResp := loadOwnEndpoint(c)
	if endpoint == nil {
		return errResp
	}

	repo := repository.GetGlobalFactory().GetWebhookEndpointRepository()
	if err := repo.Delete(endpoint.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete endpoint"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleRegenerateWebhookSecret replaces the signing secret. The old secret
// stops working immediately; the new one is returned in this response only.
func HandleRegenerateWebhookSecret(c *fiber.Ctx) error {
	endpoint, errResp := loadOwnEndpoint(c)
	if endpoint == nil {
		return errResp
	}

	secret, err := models.GenerateWebhookSecret()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to generate secret"})
	}
	endpoint.Secret = secret

	repo := repository.GetGlobalFactory().GetWebhookEndpointRepository()
	if err := repo.Update(endpoint); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update endpoint"})
	}

	resp := webhookEndpointJSON(endpoint)
	resp["secret"] = secret
	return c.JSON(resp)
}

// HandleListWebhookDeliveries lists recent deliveries for an endpoint, newest
// first.
func HandleListWebhookDeliveries(c *fiber.Ctx) error {
	endpoint, errResp := loadOwnEndpoint(c)
	if endpoint == nil {
		return errResp
	}

	limit := maxDeliveryPageSize
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "limit must be a positive integer"})
		}
		if v < limit {
			limit = v
		}
	}

	repo := repository.GetGlobalFactory().GetWebhookDeliveryRepository()
	deliveries, err := repo.ListByEndpoint(endpoint.ID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list deliveries"})
	}

	out := make([]fiber.Map, 0, len(deliveries))
	for i := range deliveries {
		d := &deliveries[i]
		out = append(out, fiber.Map{
			"id":              d.ID,
			"event_id":        d.EventID,
			"event_type":      d.EventType,
			"status":          d.Status,
			"attempts":        d.Attempts,
			"response_status": d.ResponseStatus,
			"error_message":   d.ErrorMessage,
			"next_retry_at":   formatTimePtr(d.NextRetryAt),
			"delivered_at":    formatTimePtr(d.DeliveredAt),
			"created_at":      d.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(fiber.Map{"deliveries": out})
}

// HandleTestWebhookEndpoint sends a sample payload synchronously and returns
// the outcome. Nothing is persisted.
func HandleTestWebhookEndpoint(c *fiber.Ctx) error {
	endpoint, errResp := loadOwnEndpoint(c)
	if endpoint == nil {
		return errResp
	}

	result := WebhookDispatcher().SendTest(c.Context(), endpoint)
	return c.JSON(result)
}

// loadOwnEndpoint resolves :id to an endpoint owned by the caller. On
// failure the request is already answered and the first return is nil.
func loadOwnEndpoint(c *fiber.Ctx) (*models.WebhookEndpoint, error) {
	userCtx := usercontext.GetUserContext(c)
	id, ok := paramID(c)
	if !ok {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid endpoint id"})
	}

	repo := repository.GetGlobalFactory().GetWebhookEndpointRepository()
	endpoint, err := repo.GetByIDForUser(id, userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Endpoint not found"})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load endpoint"})
	}
	return endpoint, nil
}

func webhookEndpointJSON(e *models.WebhookEndpoint) fiber.Map {
	return fiber.Map{
		"id":                   e.ID,
		"url":                  e.URL,
		"description":          e.Description,
		"events":               e.EventList(),
		"is_active":            e.IsActive,
		"last_delivery_at":     formatTimePtr(e.LastDeliveryAt),
		"last_delivery_status": e.LastDeliveryStatus,
		"success_count":        e.SuccessCount,
		"failure_count":        e.FailureCount,
		"created_at":           e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
