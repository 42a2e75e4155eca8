package rest

import (
	"context"

	"adBudgetEngine/business/attribution"
	"adBudgetEngine/business/campaign"
	"adBudgetEngine/domain"

	"github.com/stretchr/testify/mock"
)

type MockCampaignService struct {
	mock.Mock
}

func (m *MockCampaignService) Create(ctx context.Context, in campaign.CreateInput) (domain.Campaign, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.Campaign), args.Error(1)
}

func (m *MockCampaignService) Get(ctx context.Context, id string) (domain.Campaign, []domain.Creative, error) {
	args := m.Called(ctx, id)
	creatives, _ := args.Get(1).([]domain.Creative)
	return args.Get(0).(domain.Campaign), creatives, args.Error(2)
}

func (m *MockCampaignService) List(ctx context.Context, status domain.CampaignStatus) ([]domain.Campaign, error) {
	args := m.Called(ctx, status)
	list, _ := args.Get(0).([]domain.Campaign)
	return list, args.Error(1)
}

func (m *MockCampaignService) Launch(ctx context.Context, id string) (campaign.LaunchReport, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(campaign.LaunchReport), args.Error(1)
}

func (m *MockCampaignService) Pause(ctx context.Context, id string) (domain.Campaign, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Campaign), args.Error(1)
}

func (m *MockCampaignService) Resume(ctx context.Context, id string) (domain.Campaign, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Campaign), args.Error(1)
}

func (m *MockCampaignService) End(ctx context.Context, id string) (domain.Campaign, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Campaign), args.Error(1)
}

func (m *MockCampaignService) SetConstraints(ctx context.Context, id string, constraints []domain.GeoConstraint) error {
	return m.Called(ctx, id, constraints).Error(0)
}

func (m *MockCampaignService) ReplaceExclusions(ctx context.Context, id string, identities []string) (domain.ExclusionList, error) {
	args := m.Called(ctx, id, identities)
	return args.Get(0).(domain.ExclusionList), args.Error(1)
}

func (m *MockCampaignService) GetAnalytics(ctx context.Context, id string) (domain.Analytics, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Analytics), args.Error(1)
}

func (m *MockCampaignService) TriggerOptimization(ctx context.Context, id string) (domain.OptimizationResult, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.OptimizationResult), args.Error(1)
}

func (m *MockCampaignService) CancelOptimization(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockAllocationReader struct {
	mock.Mock
}

func (m *MockAllocationReader) GetAllocation(ctx context.Context, campaignID string) ([]domain.GeoAllocation, error) {
	args := m.Called(ctx, campaignID)
	allocs, _ := args.Get(0).([]domain.GeoAllocation)
	return allocs, args.Error(1)
}

type MockCycleReader struct {
	mock.Mock
}

func (m *MockCycleReader) ListCycles(ctx context.Context, campaignID string, limit int) ([]domain.ReinvestmentCycle, error) {
	args := m.Called(ctx, campaignID, limit)
	cycles, _ := args.Get(0).([]domain.ReinvestmentCycle)
	return cycles, args.Error(1)
}

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) RecordEvent(ctx context.Context, in attribution.EventInput) (domain.EventAck, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.EventAck), args.Error(1)
}

func (m *MockLedgerService) RecordSpend(ctx context.Context, in attribution.SpendInput) (domain.SpendEntry, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.SpendEntry), args.Error(1)
}

type MockOperator struct {
	mock.Mock
}

func (m *MockOperator) ListOperatorLogs(ctx context.Context, filter domain.OperatorLogFilter) ([]domain.OperatorLogEntry, error) {
	args := m.Called(ctx, filter)
	entries, _ := args.Get(0).([]domain.OperatorLogEntry)
	return entries, args.Error(1)
}

func (m *MockOperator) GetConfig(ctx context.Context, campaignID string) (domain.OptimizerConfig, bool, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).(domain.OptimizerConfig), args.Bool(1), args.Error(2)
}

func (m *MockOperator) UpsertConfig(ctx context.Context, row domain.OptimizerConfig) error {
	return m.Called(ctx, row).Error(0)
}

func (m *MockOperator) DebugArms(ctx context.Context, campaignID string, k int) ([]domain.DebugArm, error) {
	args := m.Called(ctx, campaignID, k)
	arms, _ := args.Get(0).([]domain.DebugArm)
	return arms, args.Error(1)
}

func (m *MockOperator) ListCodes(ctx context.Context, campaignID string) ([]domain.TrackingCode, error) {
	args := m.Called(ctx, campaignID)
	codes, _ := args.Get(0).([]domain.TrackingCode)
	return codes, args.Error(1)
}
