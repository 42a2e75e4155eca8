package rest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"adBudgetEngine/business/attribution"
	"adBudgetEngine/domain"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func postJSON(e *echo.Echo, handler echo.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	_ = handler(e.NewContext(req, rec))
	return rec
}

func TestIngestHandler_RecordEvent(t *testing.T) {
	ledger := new(MockLedgerService)
	h := NewIngestHandler(ledger)
	e := echo.New()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.On("RecordEvent", mock.Anything, mock.MatchedBy(func(in attribution.EventInput) bool {
		return in.Code == "c1-US-ab12" && in.EventType == domain.EventConversion &&
			in.Revenue != nil && *in.Revenue == 4.5 && in.OccurredAt.Equal(at) && in.ExternalID == "ev-1"
	})).Return(domain.EventAck{EventID: "e1"}, nil).Once()

	rec := postJSON(e, h.RecordEvent, `{"code":"c1-US-ab12","event_type":"conversion","revenue":4.5,"occurred_at":"2026-03-01T12:00:00Z","external_id":"ev-1"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"event_id":"e1"`)
	ledger.AssertExpectations(t)
}

func TestIngestHandler_RecordEvent_Duplicate(t *testing.T) {
	ledger := new(MockLedgerService)
	h := NewIngestHandler(ledger)

	ledger.On("RecordEvent", mock.Anything, mock.Anything).
		Return(domain.EventAck{EventID: "e1", Duplicate: true}, nil)

	rec := postJSON(echo.New(), h.RecordEvent, `{"code":"x","event_type":"visit","external_id":"ev-1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"duplicate":true`)
}

func TestIngestHandler_RecordEvent_Rejects(t *testing.T) {
	ledger := new(MockLedgerService)
	h := NewIngestHandler(ledger)
	e := echo.New()

	for name, body := range map[string]string{
		"unknown type":     `{"code":"x","event_type":"click"}`,
		"negative revenue": `{"code":"x","event_type":"conversion","revenue":-1}`,
		"missing code":     `{"event_type":"visit"}`,
	} {
		rec := postJSON(e, h.RecordEvent, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
	ledger.AssertNotCalled(t, "RecordEvent", mock.Anything, mock.Anything)
}

func TestIngestHandler_RecordEvent_UnknownCode(t *testing.T) {
	ledger := new(MockLedgerService)
	h := NewIngestHandler(ledger)

	ledger.On("RecordEvent", mock.Anything, mock.Anything).
		Return(domain.EventAck{}, fmt.Errorf("tracking code %q: %w", "zz", domain.ErrNotFound))

	rec := postJSON(echo.New(), h.RecordEvent, `{"code":"zz","event_type":"visit"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngestHandler_RecordSpend(t *testing.T) {
	ledger := new(MockLedgerService)
	h := NewIngestHandler(ledger)
	e := echo.New()

	ledger.On("RecordSpend", mock.Anything, mock.MatchedBy(func(in attribution.SpendInput) bool {
		return in.Code == "c1-US-ab12" && in.Amount == 12.5 && in.Impressions == 1000 && in.Views == 40
	})).Return(domain.SpendEntry{ID: "s1", CampaignID: "c1", Geo: "US", Amount: 12.5}, nil)

	rec := postJSON(e, h.RecordSpend, `{"code":"c1-US-ab12","amount":12.5,"impressions":1000,"clicks":30,"views":40}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(e, h.RecordSpend, `{"code":"c1-US-ab12","amount":-3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	ledger.AssertNumberOfCalls(t, "RecordSpend", 1)
}
