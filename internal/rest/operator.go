package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"adBudgetEngine/business/bandit"
	"adBudgetEngine/domain"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
)

type OperatorLogReader interface {
	ListOperatorLogs(ctx context.Context, filter domain.OperatorLogFilter) ([]domain.OperatorLogEntry, error)
}

type OptimizerAdmin interface {
	GetConfig(ctx context.Context, campaignID string) (domain.OptimizerConfig, bool, error)
	UpsertConfig(ctx context.Context, row domain.OptimizerConfig) error
	DebugArms(ctx context.Context, campaignID string, k int) ([]domain.DebugArm, error)
}

type TrackingCodeReader interface {
	ListCodes(ctx context.Context, campaignID string) ([]domain.TrackingCode, error)
}

type OperatorHandler struct {
	logs      OperatorLogReader
	optimizer OptimizerAdmin
	codes     TrackingCodeReader
	timeout   time.Duration
}

func NewOperatorHandler(logs OperatorLogReader, optimizer OptimizerAdmin, codes TrackingCodeReader) *OperatorHandler {
	return &OperatorHandler{
		logs:      logs,
		optimizer: optimizer,
		codes:     codes,
		timeout:   10 * time.Second,
	}
}

func intQuery(c echo.Context, name string, def int) (int, bool) {
	s := c.QueryParam(name)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// GET /api/v1/operator/logs?campaign_id=..&kind=..&limit=..
func (h *OperatorHandler) ListLogs(c echo.Context) error {
	limit, ok := intQuery(c, "limit", 100)
	if !ok {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid limit"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	entries, err := h.logs.ListOperatorLogs(ctx, domain.OperatorLogFilter{
		CampaignID: c.QueryParam("campaign_id"),
		Kind:       domain.OperatorLogKind(c.QueryParam("kind")),
		Limit:      limit,
	})
	if err != nil {
		return respondError(c, "Failed to list operator logs", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(entries))
}

// GET /api/v1/admin/optimizer/config?campaign_id=*
func (h *OperatorHandler) GetConfig(c echo.Context) error {
	campaignID := c.QueryParam("campaign_id")
	if campaignID == "" {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "campaign_id is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	cfg, ok, err := h.optimizer.GetConfig(ctx, campaignID)
	if err != nil {
		return respondError(c, "Failed to get optimizer config", err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, ResponseError{Message: "config not found"})
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(cfg))
}

// PUT /api/v1/admin/optimizer/config
// body: OptimizerConfig JSON
func (h *OperatorHandler) UpsertConfig(c echo.Context) error {
	var body domain.OptimizerConfig
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid body: " + err.Error()})
	}
	if body.CampaignID == "" {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "campaign_id is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.optimizer.UpsertConfig(ctx, body); err != nil {
		return respondError(c, "Failed to upsert optimizer config", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// GET /api/v1/admin/campaigns/:id/arms?k=3
func (h *OperatorHandler) DebugArms(c echo.Context) error {
	k, ok := intQuery(c, "k", 0)
	if !ok {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid k"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	ctx = bandit.WithTraceID(ctx, c.Response().Header().Get(echo.HeaderXRequestID))
	arms, err := h.optimizer.DebugArms(ctx, c.Param("id"), k)
	if err != nil {
		return respondError(c, "Failed to score arms", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(arms))
}

// GET /api/v1/admin/campaigns/:id/codes
func (h *OperatorHandler) ListCodes(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	codes, err := h.codes.ListCodes(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, "Failed to list tracking codes", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(codes))
}
