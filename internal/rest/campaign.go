package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"adBudgetEngine/business/campaign"
	"adBudgetEngine/domain"
	"adBudgetEngine/pkg/logger"
	"adBudgetEngine/pkg/metrics"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type CampaignService interface {
	Create(ctx context.Context, in campaign.CreateInput) (domain.Campaign, error)
	Get(ctx context.Context, id string) (domain.Campaign, []domain.Creative, error)
	List(ctx context.Context, status domain.CampaignStatus) ([]domain.Campaign, error)
	Launch(ctx context.Context, id string) (campaign.LaunchReport, error)
	Pause(ctx context.Context, id string) (domain.Campaign, error)
	Resume(ctx context.Context, id string) (domain.Campaign, error)
	End(ctx context.Context, id string) (domain.Campaign, error)
	SetConstraints(ctx context.Context, id string, constraints []domain.GeoConstraint) error
	ReplaceExclusions(ctx context.Context, id string, identities []string) (domain.ExclusionList, error)
	GetAnalytics(ctx context.Context, id string) (domain.Analytics, error)
	TriggerOptimization(ctx context.Context, id string) (domain.OptimizationResult, error)
	CancelOptimization(ctx context.Context, id string) (bool, error)
}

type AllocationReader interface {
	GetAllocation(ctx context.Context, campaignID string) ([]domain.GeoAllocation, error)
}

type CycleReader interface {
	ListCycles(ctx context.Context, campaignID string, limit int) ([]domain.ReinvestmentCycle, error)
}

type CampaignHandler struct {
	campaigns   CampaignService
	allocations AllocationReader
	cycles      CycleReader
	validator   *validator.Validate
	timeout     time.Duration
}

func NewCampaignHandler(campaigns CampaignService, allocations AllocationReader, cycles CycleReader) *CampaignHandler {
	return &CampaignHandler{
		campaigns:   campaigns,
		allocations: allocations,
		cycles:      cycles,
		validator:   validator.New(),
		timeout:     30 * time.Second,
	}
}

type CreativeRequest struct {
	SourceReference string  `json:"source_reference" validate:"required"`
	DerivedScore    float64 `json:"derived_score" validate:"gte=0,lte=1"`
}

type ConstraintRequest struct {
	Geo     string  `json:"geo" validate:"required"`
	Floor   float64 `json:"floor" validate:"gte=0,lte=1"`
	Ceiling float64 `json:"ceiling" validate:"gte=0,lte=1"`
}

type CreateCampaignRequest struct {
	ArtistID    string                  `json:"artist_id" validate:"required"`
	ContentID   string                  `json:"content_id" validate:"required"`
	DailyBudget float64                 `json:"daily_budget" validate:"required,gt=0"`
	Currency    string                  `json:"currency" validate:"omitempty,len=3"`
	Geos        []string                `json:"geos" validate:"required,min=1,dive,required"`
	SegmentID   string                  `json:"segment_id"`
	AudienceIDs []string                `json:"audience_ids"`
	Features    *domain.ContentFeatures `json:"features"`
	Creatives   []CreativeRequest       `json:"creatives" validate:"required,min=1,dive"`
	Constraints []ConstraintRequest     `json:"constraints" validate:"dive"`
}

type ConstraintsRequest struct {
	Constraints []ConstraintRequest `json:"constraints" validate:"dive"`
}

type ExclusionsRequest struct {
	Identities []string `json:"identities"`
}

type ExclusionsResponse struct {
	CampaignID  string    `json:"campaign_id"`
	Size        int       `json:"size"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

type CampaignDetail struct {
	Campaign  domain.Campaign   `json:"campaign"`
	Creatives []domain.Creative `json:"creatives"`
}

func toConstraints(campaignID string, reqs []ConstraintRequest) []domain.GeoConstraint {
	out := make([]domain.GeoConstraint, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, domain.GeoConstraint{
			CampaignID: campaignID,
			Geo:        r.Geo,
			Floor:      r.Floor,
			Ceiling:    r.Ceiling,
		})
	}
	return out
}

// POST /api/v1/campaigns
func (h *CampaignHandler) Create(c echo.Context) error {
	var req CreateCampaignRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	creatives := make([]campaign.CreativeInput, 0, len(req.Creatives))
	for _, cr := range req.Creatives {
		creatives = append(creatives, campaign.CreativeInput{
			SourceReference: cr.SourceReference,
			DerivedScore:    cr.DerivedScore,
		})
	}

	created, err := h.campaigns.Create(ctx, campaign.CreateInput{
		ArtistID:    req.ArtistID,
		ContentID:   req.ContentID,
		DailyBudget: req.DailyBudget,
		Currency:    req.Currency,
		Geos:        req.Geos,
		SegmentID:   req.SegmentID,
		AudienceIDs: req.AudienceIDs,
		Features:    req.Features,
		Creatives:   creatives,
		Constraints: toConstraints("", req.Constraints),
	})
	if err != nil {
		return respondError(c, "Failed to create campaign", err)
	}

	logger.Info("campaign_created", "campaign_id", created.ID, "artist_id", created.ArtistID)
	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(created))
}

// GET /api/v1/campaigns?status=active
func (h *CampaignHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	list, err := h.campaigns.List(ctx, domain.CampaignStatus(c.QueryParam("status")))
	if err != nil {
		return respondError(c, "Failed to list campaigns", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(list))
}

// GET /api/v1/campaigns/:id
func (h *CampaignHandler) Get(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: errMissingID.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	cmp, creatives, err := h.campaigns.Get(ctx, id)
	if err != nil {
		return respondError(c, "Failed to get campaign", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(CampaignDetail{Campaign: cmp, Creatives: creatives}))
}

// POST /api/v1/campaigns/:id/launch
func (h *CampaignHandler) Launch(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	report, err := h.campaigns.Launch(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, "Failed to launch campaign", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(report))
}

func (h *CampaignHandler) Pause(c echo.Context) error {
	return h.transition(c, "pause", h.campaigns.Pause)
}

func (h *CampaignHandler) Resume(c echo.Context) error {
	return h.transition(c, "resume", h.campaigns.Resume)
}

func (h *CampaignHandler) End(c echo.Context) error {
	return h.transition(c, "end", h.campaigns.End)
}

func (h *CampaignHandler) transition(c echo.Context, action string, fn func(context.Context, string) (domain.Campaign, error)) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	cmp, err := fn(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, "Failed to "+action+" campaign", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(cmp))
}

// PUT /api/v1/campaigns/:id/constraints
func (h *CampaignHandler) SetConstraints(c echo.Context) error {
	id := c.Param("id")

	var req ConstraintsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	constraints := toConstraints(id, req.Constraints)
	if err := h.campaigns.SetConstraints(ctx, id, constraints); err != nil {
		return respondError(c, "Failed to set geo constraints", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(constraints))
}

// PUT /api/v1/campaigns/:id/exclusions
func (h *CampaignHandler) ReplaceExclusions(c echo.Context) error {
	var req ExclusionsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	list, err := h.campaigns.ReplaceExclusions(ctx, c.Param("id"), req.Identities)
	if err != nil {
		return respondError(c, "Failed to replace exclusion list", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(ExclusionsResponse{
		CampaignID:  list.CampaignID,
		Size:        len(list.Identities),
		RefreshedAt: list.RefreshedAt,
	}))
}

// GET /api/v1/campaigns/:id/allocation
func (h *CampaignHandler) GetAllocation(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	allocs, err := h.allocations.GetAllocation(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, "Failed to get geo allocation", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(allocs))
}

// GET /api/v1/campaigns/:id/analytics
func (h *CampaignHandler) GetAnalytics(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	a, err := h.campaigns.GetAnalytics(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, "Failed to get analytics", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(a))
}

// POST /api/v1/campaigns/:id/optimize
func (h *CampaignHandler) Optimize(c echo.Context) error {
	// the cycle outlives a dropped client; only its own timeout stops it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), h.timeout)
	defer cancel()

	res, err := h.campaigns.TriggerOptimization(ctx, c.Param("id"))
	if err != nil {
		metrics.OptimizeRequests.WithLabelValues("error").Inc()
		return respondError(c, "Failed to run optimization", err)
	}

	outcome := "ok"
	if res.Duplicate {
		outcome = "duplicate"
	}
	metrics.OptimizeRequests.WithLabelValues(outcome).Inc()
	return c.JSON(http.StatusOK, fres.Response.StatusOK(res))
}

// DELETE /api/v1/campaigns/:id/optimize
func (h *CampaignHandler) CancelOptimization(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	cancelled, err := h.campaigns.CancelOptimization(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, "Failed to cancel optimization", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(echo.Map{"cancelled": cancelled}))
}

// GET /api/v1/campaigns/:id/cycles?limit=20
func (h *CampaignHandler) ListCycles(c echo.Context) error {
	limit := 20
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid limit"})
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	cycles, err := h.cycles.ListCycles(ctx, c.Param("id"), limit)
	if err != nil {
		return respondError(c, "Failed to list reinvestment cycles", err)
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(cycles))
}
