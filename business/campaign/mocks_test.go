package campaign

import (
	"context"

	"adBudgetEngine/business/reinvest"
	"adBudgetEngine/domain"

	"github.com/stretchr/testify/mock"
)

type MockCampaignRepository struct{ mock.Mock }

func (m *MockCampaignRepository) CreateCampaign(ctx context.Context, c domain.Campaign, creatives []domain.Creative) error {
	args := m.Called(ctx, c, creatives)
	return args.Error(0)
}

func (m *MockCampaignRepository) GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Campaign), args.Bool(1), args.Error(2)
}

func (m *MockCampaignRepository) ListCampaigns(ctx context.Context, status domain.CampaignStatus) ([]domain.Campaign, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]domain.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) MarkLaunched(ctx context.Context, c domain.Campaign) (bool, error) {
	args := m.Called(ctx, c)
	return args.Bool(0), args.Error(1)
}

func (m *MockCampaignRepository) TransitionStatus(ctx context.Context, id string, from, to domain.CampaignStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

type MockCreativeRepository struct{ mock.Mock }

func (m *MockCreativeRepository) ListCreatives(ctx context.Context, campaignID string) ([]domain.Creative, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).([]domain.Creative), args.Error(1)
}

func (m *MockCreativeRepository) SetCreativeStatus(ctx context.Context, creativeID string, status domain.CreativeStatus) error {
	args := m.Called(ctx, creativeID, status)
	return args.Error(0)
}

type MockGeoPlanner struct{ mock.Mock }

func (m *MockGeoPlanner) Plan(ctx context.Context, c domain.Campaign) ([]domain.GeoAllocation, bool, error) {
	args := m.Called(ctx, c)
	allocs, _ := args.Get(0).([]domain.GeoAllocation)
	return allocs, args.Bool(1), args.Error(2)
}

func (m *MockGeoPlanner) SetConstraints(ctx context.Context, campaignID string, constraints []domain.GeoConstraint) error {
	args := m.Called(ctx, campaignID, constraints)
	return args.Error(0)
}

func (m *MockGeoPlanner) GetAllocation(ctx context.Context, campaignID string) ([]domain.GeoAllocation, error) {
	args := m.Called(ctx, campaignID)
	allocs, _ := args.Get(0).([]domain.GeoAllocation)
	return allocs, args.Error(1)
}

type MockAllocationRepository struct{ mock.Mock }

func (m *MockAllocationRepository) ReplaceAllocations(ctx context.Context, campaignID string, allocations []domain.GeoAllocation) error {
	args := m.Called(ctx, campaignID, allocations)
	return args.Error(0)
}

type MockExclusions struct{ mock.Mock }

func (m *MockExclusions) Apply(ctx context.Context, spec domain.TargetingSpec) (domain.TargetingSpec, domain.ExclusionReport, error) {
	args := m.Called(ctx, spec)
	return args.Get(0).(domain.TargetingSpec), args.Get(1).(domain.ExclusionReport), args.Error(2)
}

func (m *MockExclusions) Replace(ctx context.Context, campaignID string, identities []string) (domain.ExclusionList, error) {
	args := m.Called(ctx, campaignID, identities)
	return args.Get(0).(domain.ExclusionList), args.Error(1)
}

type MockLedger struct{ mock.Mock }

func (m *MockLedger) IssueTrackingCode(ctx context.Context, campaignID, creativeID, geo, segmentID string) (string, error) {
	args := m.Called(ctx, campaignID, creativeID, geo, segmentID)
	return args.String(0), args.Error(1)
}

func (m *MockLedger) Aggregate(ctx context.Context, q domain.LedgerQuery) (domain.AttributionAggregate, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(domain.AttributionAggregate), args.Error(1)
}

func (m *MockLedger) AggregateBy(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.AttributionAggregate, error) {
	args := m.Called(ctx, q, group)
	return args.Get(0).([]domain.AttributionAggregate), args.Error(1)
}

func (m *MockLedger) SpendBy(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.SpendAggregate, error) {
	args := m.Called(ctx, q, group)
	return args.Get(0).([]domain.SpendAggregate), args.Error(1)
}

type MockLauncher struct{ mock.Mock }

func (m *MockLauncher) LaunchCampaign(ctx context.Context, spec domain.LaunchSpec) (string, error) {
	args := m.Called(ctx, spec)
	return args.String(0), args.Error(1)
}

type MockReinvestor struct{ mock.Mock }

func (m *MockReinvestor) Evaluate(ctx context.Context, campaignID string, trigger domain.CycleTrigger) (reinvest.Result, error) {
	args := m.Called(ctx, campaignID, trigger)
	return args.Get(0).(reinvest.Result), args.Error(1)
}

func (m *MockReinvestor) Cancel(campaignID string) bool {
	args := m.Called(campaignID)
	return args.Bool(0)
}

func (m *MockReinvestor) Escalated(c domain.Campaign) bool {
	args := m.Called(c)
	return args.Bool(0)
}

type MockArmSelector struct{ mock.Mock }

func (m *MockArmSelector) SelectArms(ctx context.Context, campaignID string, k int) ([]domain.Arm, error) {
	args := m.Called(ctx, campaignID, k)
	arms, _ := args.Get(0).([]domain.Arm)
	return arms, args.Error(1)
}

type MockOperatorLog struct{ mock.Mock }

func (m *MockOperatorLog) Append(ctx context.Context, entry domain.OperatorLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockOperatorLog) List(ctx context.Context, filter domain.OperatorLogFilter) ([]domain.OperatorLogEntry, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.OperatorLogEntry), args.Error(1)
}
