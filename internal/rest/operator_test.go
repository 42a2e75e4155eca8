package rest

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"adBudgetEngine/domain"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newOperatorFixture() (*MockOperator, *OperatorHandler, *echo.Echo) {
	m := new(MockOperator)
	return m, NewOperatorHandler(m, m, m), echo.New()
}

func TestOperatorHandler_ListLogs(t *testing.T) {
	m, h, e := newOperatorFixture()
	m.On("ListOperatorLogs", mock.Anything, domain.OperatorLogFilter{
		CampaignID: "c1",
		Kind:       domain.LogCycleFailed,
		Limit:      10,
	}).Return([]domain.OperatorLogEntry{{ID: 1, CampaignID: "c1", Kind: domain.LogCycleFailed}}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?campaign_id=c1&kind=cycle_failed&limit=10", nil)
	_ = h.ListLogs(e.NewContext(req, rec))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"cycle_failed"`)
	m.AssertExpectations(t)
}

func TestOperatorHandler_GetConfig(t *testing.T) {
	m, h, e := newOperatorFixture()
	m.On("GetConfig", mock.Anything, "c1").Return(domain.OptimizerConfig{CampaignID: "c1", TopK: 3}, true, nil)
	m.On("GetConfig", mock.Anything, "c2").Return(domain.OptimizerConfig{}, false, nil)

	rec := httptest.NewRecorder()
	_ = h.GetConfig(e.NewContext(httptest.NewRequest(http.MethodGet, "/?campaign_id=c1", nil), rec))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"top_k":3`)

	rec = httptest.NewRecorder()
	_ = h.GetConfig(e.NewContext(httptest.NewRequest(http.MethodGet, "/?campaign_id=c2", nil), rec))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	_ = h.GetConfig(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOperatorHandler_UpsertConfig(t *testing.T) {
	m, h, e := newOperatorFixture()
	m.On("UpsertConfig", mock.Anything, mock.MatchedBy(func(row domain.OptimizerConfig) bool {
		return row.CampaignID == "*" && row.ROIThreshold == 1.5
	})).Return(nil)

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"campaign_id":"*","roi_threshold":1.5}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	_ = h.UpsertConfig(e.NewContext(req, rec))

	assert.Equal(t, http.StatusOK, rec.Code)
	m.AssertExpectations(t)
}

func TestOperatorHandler_DebugArms(t *testing.T) {
	m, h, e := newOperatorFixture()
	m.On("DebugArms", mock.Anything, "c1", 2).Return([]domain.DebugArm{
		{CreativeID: "cr1", Geo: "US", Policy: "ucb1", Selected: true},
	}, nil)
	m.On("DebugArms", mock.Anything, "c9", 0).Return(nil, errors.New("db down"))

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?k=2", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("c1")
	_ = h.DebugArms(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"policy":"ucb1"`)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("c9")
	_ = h.DebugArms(c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
