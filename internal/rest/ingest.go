package rest

import (
	"context"
	"net/http"
	"time"

	"adBudgetEngine/business/attribution"
	"adBudgetEngine/domain"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type LedgerService interface {
	RecordEvent(ctx context.Context, in attribution.EventInput) (domain.EventAck, error)
	RecordSpend(ctx context.Context, in attribution.SpendInput) (domain.SpendEntry, error)
}

// IngestHandler receives platform webhooks for visits, conversions and
// delivery reports.
type IngestHandler struct {
	ledger    LedgerService
	validator *validator.Validate
	timeout   time.Duration
}

func NewIngestHandler(ledger LedgerService) *IngestHandler {
	return &IngestHandler{
		ledger:    ledger,
		validator: validator.New(),
		timeout:   5 * time.Second,
	}
}

type EventRequest struct {
	Code       string    `json:"code" validate:"required"`
	EventType  string    `json:"event_type" validate:"required,oneof=visit conversion"`
	Revenue    *float64  `json:"revenue" validate:"omitempty,gte=0"`
	OccurredAt time.Time `json:"occurred_at"`
	ExternalID string    `json:"external_id"`
}

type SpendRequest struct {
	Code        string    `json:"code" validate:"required"`
	Amount      float64   `json:"amount" validate:"gte=0"`
	Impressions int64     `json:"impressions" validate:"gte=0"`
	Clicks      int64     `json:"clicks" validate:"gte=0"`
	Views       int64     `json:"views" validate:"gte=0"`
	ReportedAt  time.Time `json:"reported_at"`
}

// POST /api/v1/ingest/events
func (h *IngestHandler) RecordEvent(c echo.Context) error {
	var req EventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	ack, err := h.ledger.RecordEvent(ctx, attribution.EventInput{
		Code:       req.Code,
		EventType:  domain.TrackingEventType(req.EventType),
		Revenue:    req.Revenue,
		OccurredAt: req.OccurredAt,
		ExternalID: req.ExternalID,
	})
	if err != nil {
		return respondError(c, "Failed to record attribution event", err)
	}

	if ack.Duplicate {
		return c.JSON(http.StatusOK, fres.Response.StatusOK(ack))
	}
	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(ack))
}

// POST /api/v1/ingest/spend
func (h *IngestHandler) RecordSpend(c echo.Context) error {
	var req SpendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	entry, err := h.ledger.RecordSpend(ctx, attribution.SpendInput{
		Code:        req.Code,
		Amount:      req.Amount,
		Impressions: req.Impressions,
		Clicks:      req.Clicks,
		Views:       req.Views,
		ReportedAt:  req.ReportedAt,
	})
	if err != nil {
		return respondError(c, "Failed to record spend", err)
	}
	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(entry))
}
