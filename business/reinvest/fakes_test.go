package reinvest

import (
	"context"
	"errors"
	"sync"

	"adBudgetEngine/domain"
)

type memCampaigns struct {
	mu   sync.Mutex
	rows map[string]domain.Campaign
	fail map[string]error
}

func newMemCampaigns(cs ...domain.Campaign) *memCampaigns {
	m := &memCampaigns{rows: map[string]domain.Campaign{}, fail: map[string]error{}}
	for _, c := range cs {
		m.rows[c.ID] = c
	}
	return m
}

func (m *memCampaigns) get(id string) domain.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

func (m *memCampaigns) GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[id]; err != nil {
		return domain.Campaign{}, false, err
	}
	c, ok := m.rows[id]
	return c, ok, nil
}

func (m *memCampaigns) ListRunning(ctx context.Context) ([]domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.rows {
		if c.Running() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCampaigns) SetCycleState(ctx context.Context, id string, state domain.CycleState) error {
	return m.update(id, func(c *domain.Campaign) { c.CycleState = state })
}

func (m *memCampaigns) TransitionStatus(ctx context.Context, id string, from, to domain.CampaignStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	m.rows[id] = c
	return true, nil
}

func (m *memCampaigns) SetConsecutiveFailures(ctx context.Context, id string, n int) error {
	return m.update(id, func(c *domain.Campaign) { c.ConsecutiveFailures = n })
}

func (m *memCampaigns) SetDailyBudget(ctx context.Context, id string, amount float64) error {
	return m.update(id, func(c *domain.Campaign) { c.DailyBudget = amount })
}

func (m *memCampaigns) update(id string, fn func(c *domain.Campaign)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&c)
	m.rows[id] = c
	return nil
}

type memCycles struct {
	mu   sync.Mutex
	rows map[string]domain.ReinvestmentCycle
}

func newMemCycles() *memCycles {
	return &memCycles{rows: map[string]domain.ReinvestmentCycle{}}
}

func (m *memCycles) FindCycle(ctx context.Context, campaignID, windowID string) (domain.ReinvestmentCycle, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[campaignID+"|"+windowID]
	return c, ok, nil
}

func (m *memCycles) CreateCycle(ctx context.Context, cycle domain.ReinvestmentCycle) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cycle.CampaignID + "|" + cycle.WindowID
	if _, ok := m.rows[key]; ok {
		return false, nil
	}
	m.rows[key] = cycle
	return true, nil
}

func (m *memCycles) UpdateCycle(ctx context.Context, cycle domain.ReinvestmentCycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[cycle.CampaignID+"|"+cycle.WindowID] = cycle
	return nil
}

func (m *memCycles) ListCycles(ctx context.Context, campaignID string, limit int) ([]domain.ReinvestmentCycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ReinvestmentCycle
	for _, c := range m.rows {
		if c.CampaignID == campaignID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCycles) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type fakeLedger struct {
	revenue map[string]float64
	spend   map[string]float64
	onSpend func()
	lastQ   domain.LedgerQuery
}

func (f *fakeLedger) AggregateBy(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.AttributionAggregate, error) {
	if group != domain.GroupCreative {
		return nil, errors.New("unexpected group")
	}
	f.lastQ = q
	var out []domain.AttributionAggregate
	for id, r := range f.revenue {
		out = append(out, domain.AttributionAggregate{CreativeID: id, Revenue: r})
	}
	return out, nil
}

func (f *fakeLedger) SpendBy(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.SpendAggregate, error) {
	if f.onSpend != nil {
		f.onSpend()
	}
	var out []domain.SpendAggregate
	for id, s := range f.spend {
		out = append(out, domain.SpendAggregate{CreativeID: id, Amount: s})
	}
	return out, nil
}

type memAllocations struct {
	mu   sync.Mutex
	rows map[string][]domain.GeoAllocation
}

func (m *memAllocations) ListAllocations(ctx context.Context, campaignID string) ([]domain.GeoAllocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.GeoAllocation(nil), m.rows[campaignID]...), nil
}

func (m *memAllocations) ReplaceAllocations(ctx context.Context, campaignID string, allocations []domain.GeoAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[campaignID] = allocations
	return nil
}

type fakeCreatives struct {
	mu     sync.Mutex
	status map[string]domain.CreativeStatus
}

func (f *fakeCreatives) SetCreativeStatus(ctx context.Context, creativeID string, status domain.CreativeStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[creativeID] = status
	return nil
}

type fakePlatform struct {
	mu     sync.Mutex
	calls  []domain.BudgetUpdate
	errs   []error
	always error
	onCall func()
}

func (f *fakePlatform) UpdateBudget(ctx context.Context, platformCampaignID string, upd domain.BudgetUpdate) error {
	if f.onCall != nil {
		f.onCall()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, upd)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return f.always
}

func (f *fakePlatform) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAlerter struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakeAlerter) AlertOperator(ctx context.Context, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return nil
}

type memOpLog struct {
	mu      sync.Mutex
	entries []domain.OperatorLogEntry
}

func (m *memOpLog) Append(ctx context.Context, entry domain.OperatorLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memOpLog) kinds() []domain.OperatorLogKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OperatorLogKind
	for _, e := range m.entries {
		out = append(out, e.Kind)
	}
	return out
}

type memDecisions struct {
	mu   sync.Mutex
	recs []domain.DecisionRecord
}

func (m *memDecisions) SaveDecision(ctx context.Context, rec domain.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

type stubOverrides map[string]domain.OptimizerConfig

func (s stubOverrides) GetConfig(ctx context.Context, campaignID string) (domain.OptimizerConfig, bool, error) {
	row, ok := s[campaignID]
	return row, ok, nil
}
