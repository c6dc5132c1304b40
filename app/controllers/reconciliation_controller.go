package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/causekit/causekit/app/models"
	"github.com/causekit/causekit/app/repository"
	"github.com/causekit/causekit/internal/pkg/reconcile"
	"github.com/causekit/causekit/internal/pkg/usercontext"
)

type createReconciliationRequest struct {
	Type      string `json:"type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Notes     string `json:"notes"`
}

// HandleCreateReconciliation runs a reconciliation for the given date window
// synchronously and returns the completed run. A Stripe outage answers 502
// and leaves a failed run behind.
func HandleCreateReconciliation(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req createReconciliationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if req.Type == "" {
		req.Type = models.ReconciliationTypeManual
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "start_date must be RFC 3339 or YYYY-MM-DD"})
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "end_date must be RFC 3339 or YYYY-MM-DD"})
	}
	if end.Before(start) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "end_date must not be before start_date"})
	}

	run, err := ReconcileService().CreateReconciliation(c.Context(), reconcile.CreateInput{
		Type:        req.Type,
		StartDate:   start,
		EndDate:     end,
		Notes:       req.Notes,
		InitiatedBy: userCtx.UserID,
	})
	if err != nil {
		if errors.Is(err, reconcile.ErrLedgerUnavailable) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "ledger_unavailable", "message": "Stripe ledger could not be read; the run was marked failed"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(run)
}

// HandleListReconciliations lists runs, newest first.
func HandleListReconciliations(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	repo := repository.GetGlobalFactory().GetReconciliationRepository()
	runs, err := repo.ListRuns((page-1)*limit, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list reconciliations"})
	}
	return c.JSON(fiber.Map{"reconciliations": runs, "page": page, "limit": limit})
}

// HandleGetReconciliation returns one run by id.
func HandleGetReconciliation(c *fiber.Ctx) error {
	run, errResp := loadRun(c)
	if run == nil {
		return errResp
	}
	return c.JSON(run)
}

// HandleListReconciliationItems returns a run's items, optionally filtered by
// match status.
func HandleListReconciliationItems(c *fiber.Ctx) error {
	run, errResp := loadRun(c)
	if run == nil {
		return errResp
	}

	matchStatus := c.Query("match_status")
	switch matchStatus {
	case "", models.MatchStatusMatched, models.MatchStatusUnmatchedStripe,
		models.MatchStatusUnmatchedDonation, models.MatchStatusAmountMismatch,
		models.MatchStatusDateMismatch:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Unknown match_status"})
	}

	repo := repository.GetGlobalFactory().GetReconciliationRepository()
	items, err := repo.ListItems(run.ID, matchStatus)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list items"})
	}
	return c.JSON(fiber.Map{"items": items})
}

// HandleListReconciliationDiscrepancies returns a run's discrepancies.
func HandleListReconciliationDiscrepancies(c *fiber.Ctx) error {
	run, errResp := loadRun(c)
	if run == nil {
		return errResp
	}

	repo := repository.GetGlobalFactory().GetReconciliationRepository()
	discrepancies, err := repo.ListDiscrepancies(run.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list discrepancies"})
	}
	return c.JSON(fiber.Map{"discrepancies": discrepancies})
}

type resolveDiscrepancyRequest struct {
	Status          string `json:"status"`
	ResolutionNotes string `json:"resolution_notes"`
}

// HandleResolveDiscrepancy advances a discrepancy through its manual
// lifecycle. Already-terminal discrepancies come back unchanged.
func HandleResolveDiscrepancy(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	id, ok := paramID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid discrepancy id"})
	}

	var req resolveDiscrepancyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}

	d, err := ReconcileService().ResolveDiscrepancy(c.Context(), id, req.Status, req.ResolutionNotes, userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Discrepancy not found"})
		}
		if errors.Is(err, reconcile.ErrInvalidResolutionStatus) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to resolve discrepancy"})
	}
	return c.JSON(d)
}

type manualMatchRequest struct {
	DonationID        uint   `json:"donation_id"`
	ExternalReference string `json:"external_reference"`
}

// HandleManualMatch attaches a Stripe reference to a donation and marks it
// reconciled, bypassing the automatic matcher.
func HandleManualMatch(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req manualMatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if req.DonationID == 0 || req.ExternalReference == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "donation_id and external_reference are required"})
	}

	donation, err := ReconcileService().ManualMatch(c.Context(), req.DonationID, req.ExternalReference, userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Donation not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to match donation"})
	}
	return c.JSON(donation)
}

// loadRun resolves :id to a reconciliation run. On failure the request is
// already answered and the first return is nil.
func loadRun(c *fiber.Ctx) (*models.PaymentReconciliation, error) {
	id, ok := paramID(c)
	if !ok {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid reconciliation id"})
	}

	repo := repository.GetGlobalFactory().GetReconciliationRepository()
	run, err := repo.GetRun(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Reconciliation not found"})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load reconciliation"})
	}
	return run, nil
}
