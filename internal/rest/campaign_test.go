package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"adBudgetEngine/business/campaign"
	"adBudgetEngine/domain"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type campaignFixture struct {
	svc    *MockCampaignService
	allocs *MockAllocationReader
	cycles *MockCycleReader
	h      *CampaignHandler
	e      *echo.Echo
}

func newCampaignFixture() *campaignFixture {
	f := &campaignFixture{
		svc:    new(MockCampaignService),
		allocs: new(MockAllocationReader),
		cycles: new(MockCycleReader),
		e:      echo.New(),
	}
	f.h = NewCampaignHandler(f.svc, f.allocs, f.cycles)
	return f
}

func (f *campaignFixture) call(method, target, body string, handler echo.HandlerFunc, id string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	if id != "" {
		c.SetParamNames("id")
		c.SetParamValues(id)
	}
	_ = handler(c)
	return rec
}

func TestCampaignHandler_Create(t *testing.T) {
	f := newCampaignFixture()

	f.svc.On("Create", mock.Anything, mock.MatchedBy(func(in campaign.CreateInput) bool {
		return in.ArtistID == "a1" && in.DailyBudget == 100 &&
			len(in.Creatives) == 2 && len(in.Constraints) == 1 && in.Constraints[0].Floor == 0.2
	})).Return(domain.Campaign{ID: "c1", ArtistID: "a1", Status: domain.CampaignDraft}, nil)

	body := `{
		"artist_id": "a1",
		"content_id": "t1",
		"daily_budget": 100,
		"geos": ["US", "MX"],
		"creatives": [{"source_reference": "clip-1", "derived_score": 0.8}, {"source_reference": "clip-2"}],
		"constraints": [{"geo": "US", "floor": 0.2, "ceiling": 0.9}]
	}`
	rec := f.call(http.MethodPost, "/api/v1/campaigns", body, f.h.Create, "")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"c1"`)
	f.svc.AssertExpectations(t)
}

func TestCampaignHandler_Create_Validation(t *testing.T) {
	f := newCampaignFixture()

	cases := map[string]string{
		"missing budget":    `{"artist_id":"a1","content_id":"t1","geos":["US"],"creatives":[{"source_reference":"x"}]}`,
		"no geos":           `{"artist_id":"a1","content_id":"t1","daily_budget":5,"geos":[],"creatives":[{"source_reference":"x"}]}`,
		"ceiling above one": `{"artist_id":"a1","content_id":"t1","daily_budget":5,"geos":["US"],"creatives":[{"source_reference":"x"}],"constraints":[{"geo":"US","ceiling":1.5}]}`,
		"bad json":          `{"artist_id":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := f.call(http.MethodPost, "/api/v1/campaigns", body, f.h.Create, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	f.svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCampaignHandler_Get_NotFound(t *testing.T) {
	f := newCampaignFixture()
	f.svc.On("Get", mock.Anything, "nope").
		Return(domain.Campaign{}, nil, fmt.Errorf("campaign nope: %w", domain.ErrNotFound))

	rec := f.call(http.MethodGet, "/api/v1/campaigns/nope", "", f.h.Get, "nope")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")
}

func TestCampaignHandler_Launch_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not draft", fmt.Errorf("launch: %w", domain.ErrInvalidState), http.StatusConflict},
		{"infeasible floors", domain.ConstraintViolationf("floors sum to 1.2"), http.StatusUnprocessableEntity},
		{"platform down", &domain.ExternalCallFailure{Operation: "launch_campaign", Attempts: 4, Err: errors.New("503")}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newCampaignFixture()
			f.svc.On("Launch", mock.Anything, "c1").Return(campaign.LaunchReport{}, tc.err)

			rec := f.call(http.MethodPost, "/api/v1/campaigns/c1/launch", "", f.h.Launch, "c1")
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestCampaignHandler_PauseResumeEnd(t *testing.T) {
	f := newCampaignFixture()
	f.svc.On("Pause", mock.Anything, "c1").Return(domain.Campaign{ID: "c1", Status: domain.CampaignPaused}, nil)
	f.svc.On("Resume", mock.Anything, "c1").Return(domain.Campaign{ID: "c1", Status: domain.CampaignActive}, nil)
	f.svc.On("End", mock.Anything, "c1").Return(domain.Campaign{}, fmt.Errorf("end: %w", domain.ErrInvalidState))

	rec := f.call(http.MethodPost, "/", "", f.h.Pause, "c1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"paused"`)

	rec = f.call(http.MethodPost, "/", "", f.h.Resume, "c1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.call(http.MethodPost, "/", "", f.h.End, "c1")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCampaignHandler_SetConstraints(t *testing.T) {
	f := newCampaignFixture()
	f.svc.On("SetConstraints", mock.Anything, "c1", []domain.GeoConstraint{
		{CampaignID: "c1", Geo: "US", Floor: 0.3, Ceiling: 0.6},
	}).Return(nil)

	rec := f.call(http.MethodPut, "/", `{"constraints":[{"geo":"US","floor":0.3,"ceiling":0.6}]}`, f.h.SetConstraints, "c1")

	assert.Equal(t, http.StatusOK, rec.Code)
	f.svc.AssertExpectations(t)
}

func TestCampaignHandler_ReplaceExclusions(t *testing.T) {
	f := newCampaignFixture()
	f.svc.On("ReplaceExclusions", mock.Anything, "c1", []string{"u1", "u2"}).Return(domain.ExclusionList{
		CampaignID: "c1",
		Identities: map[string]struct{}{"u1": {}, "u2": {}},
	}, nil)

	rec := f.call(http.MethodPut, "/", `{"identities":["u1","u2"]}`, f.h.ReplaceExclusions, "c1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"size":2`)
}

func TestCampaignHandler_Optimize(t *testing.T) {
	f := newCampaignFixture()
	f.svc.On("TriggerOptimization", mock.Anything, "c1").Return(domain.OptimizationResult{
		CampaignID: "c1",
		Cycle:      &domain.ReinvestmentCycle{ID: "cy1", Status: domain.CycleStatusReinvested},
	}, nil)

	rec := f.call(http.MethodPost, "/", "", f.h.Optimize, "c1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cy1"`)
}

func TestCampaignHandler_OptimizeSurvivesClientDisconnect(t *testing.T) {
	f := newCampaignFixture()
	f.svc.On("TriggerOptimization", mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return ctx.Err() == nil && hasDeadline
	}), "c1").Return(domain.OptimizationResult{CampaignID: "c1"}, nil)

	gone, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/", nil).WithContext(gone)
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("c1")

	require.NoError(t, f.h.Optimize(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	f.svc.AssertExpectations(t)
}

func TestCampaignHandler_CancelOptimization(t *testing.T) {
	f := newCampaignFixture()
	f.svc.On("CancelOptimization", mock.Anything, "c1").Return(true, nil)

	rec := f.call(http.MethodDelete, "/", "", f.h.CancelOptimization, "c1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cancelled":true`)
}

func TestCampaignHandler_GetAllocation(t *testing.T) {
	f := newCampaignFixture()
	f.allocs.On("GetAllocation", mock.Anything, "c1").Return([]domain.GeoAllocation{
		{CampaignID: "c1", Geo: "US", Fraction: 0.7, Amount: 70},
		{CampaignID: "c1", Geo: "MX", Fraction: 0.3, Amount: 30},
	}, nil)

	rec := f.call(http.MethodGet, "/", "", f.h.GetAllocation, "c1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"geo":"MX"`)
}

func TestCampaignHandler_ListCycles(t *testing.T) {
	f := newCampaignFixture()
	f.cycles.On("ListCycles", mock.Anything, "c1", 5).Return([]domain.ReinvestmentCycle{{ID: "cy1"}}, nil)

	rec := f.call(http.MethodGet, "/?limit=5", "", f.h.ListCycles, "c1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.call(http.MethodGet, "/?limit=-1", "", f.h.ListCycles, "c1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.cycles.AssertNumberOfCalls(t, "ListCycles", 1)
}
