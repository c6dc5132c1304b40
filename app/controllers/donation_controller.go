package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/causekit/causekit/app/models"
	"github.com/causekit/causekit/app/repository"
)

type donationRequest struct {
	DonorName        string  `json:"donor_name"`
	DonorEmail       string  `json:"donor_email"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	PaymentMethod    string  `json:"payment_method"`
	PaymentStatus    string  `json:"payment_status"`
	PaymentReference string  `json:"payment_reference"`
	DonatedAt        string  `json:"donated_at"`
}

// HandleCreateDonation records a donation and emits donation.created to
// subscribed webhook endpoints.
func HandleCreateDonation(c *fiber.Ctx) error {
	var req donationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if req.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "amount must be positive"})
	}

	donatedAt := time.Now()
	if req.DonatedAt != "" {
		t, err := parseDate(req.DonatedAt)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "donated_at must be RFC 3339 or YYYY-MM-DD"})
		}
		donatedAt = t
	}
	if req.Currency == "" {
		req.Currency = "usd"
	}
	if req.PaymentStatus == "" {
		req.PaymentStatus = models.PaymentStatusPending
	}

	donation := &models.Donation{
		DonorName:            req.DonorName,
		DonorEmail:           req.DonorEmail,
		Amount:               req.Amount,
		Currency:             req.Currency,
		PaymentMethod:        req.PaymentMethod,
		PaymentStatus:        req.PaymentStatus,
		PaymentReference:     req.PaymentReference,
		ReconciliationStatus: models.ReconStatusUnreconciled,
		DonatedAt:            donatedAt,
	}
	if err := donation.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	repo := repository.GetGlobalFactory().GetDonationRepository()
	if err := repo.Create(donation); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create donation"})
	}

	// Deliveries settle on their own schedule, never on the request path.
	go WebhookDispatcher().Trigger(context.Background(), "donation.created", donation, nil)

	return c.Status(fiber.StatusCreated).JSON(donation)
}

// HandleUpdateDonationStatus changes a donation's payment status and emits
// donation.updated with the previous value.
func HandleUpdateDonationStatus(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid donation id"})
	}

	var req struct {
		PaymentStatus string `json:"payment_status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	switch req.PaymentStatus {
	case models.PaymentStatusPending, models.PaymentStatusCompleted,
		models.PaymentStatusFailed, models.PaymentStatusRefunded:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Unknown payment_status"})
	}

	repo := repository.GetGlobalFactory().GetDonationRepository()
	donation, err := repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Donation not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load donation"})
	}

	previous := fiber.Map{"payment_status": donation.PaymentStatus}
	donation.PaymentStatus = req.PaymentStatus
	if err := repo.Update(donation); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update donation"})
	}

	go WebhookDispatcher().Trigger(context.Background(), "donation.updated", donation, previous)

	return c.JSON(donation)
}
