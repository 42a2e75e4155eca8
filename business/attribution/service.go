package attribution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"adBudgetEngine/domain"
	"adBudgetEngine/pkg/logger"
	"adBudgetEngine/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"
	"gorm.io/datatypes"
)

const defaultCacheTTL = 30 * time.Second

// ---- Repository interfaces ----

type CodeRepository interface {
	FindCode(ctx context.Context, campaignID, creativeID, geo, segmentID string) (domain.TrackingCode, bool, error)
	GetCode(ctx context.Context, code string) (domain.TrackingCode, bool, error)
	// InsertCode reports false when the tuple already had a code.
	InsertCode(ctx context.Context, tc domain.TrackingCode) (bool, error)
	ListCodes(ctx context.Context, campaignID string) ([]domain.TrackingCode, error)
}

type EventRepository interface {
	// InsertEvent reports false when the external id was already recorded.
	InsertEvent(ctx context.Context, ev domain.AttributionEvent) (bool, error)
	FindEventByExternalID(ctx context.Context, externalID string) (domain.AttributionEvent, bool, error)
	HasVisitBefore(ctx context.Context, code string, at time.Time) (bool, error)
	AggregateEvents(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.AttributionAggregate, error)
}

type SpendRepository interface {
	InsertSpend(ctx context.Context, entry domain.SpendEntry) error
	AggregateSpend(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.SpendAggregate, error)
}

type OperatorLogRepository interface {
	Append(ctx context.Context, entry domain.OperatorLogEntry) error
}

type Config struct {
	CacheTTL time.Duration
	Clock    clockwork.Clock
}

func (c *Config) Validate() error {
	if c.Clock == nil {
		return errors.New("clock is required")
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = defaultCacheTTL
	}
	return nil
}

// Service is the attribution ledger: tracking codes, append-only events
// and read-optimized aggregates over them.
type Service struct {
	codes  CodeRepository
	events EventRepository
	spend  SpendRepository
	opLog  OperatorLogRepository
	cfg    Config

	cache   *ttlcache.Cache[string, any]
	cacheMu sync.RWMutex
}

func NewService(codes CodeRepository, events EventRepository, spend SpendRepository, opLog OperatorLogRepository, cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, any](cfg.CacheTTL),
	)

	return &Service{
		codes:  codes,
		events: events,
		spend:  spend,
		opLog:  opLog,
		cfg:    cfg,
		cache:  cache,
	}, nil
}

type EventInput struct {
	Code       string
	EventType  domain.TrackingEventType
	Revenue    *float64
	OccurredAt time.Time
	ExternalID string
}

type SpendInput struct {
	Code        string
	Amount      float64
	Impressions int64
	Clicks      int64
	Views       int64
	ReportedAt  time.Time
}

// IssueTrackingCode returns the code for the tuple, creating it on first
// use. Concurrent callers for the same tuple all get the stored code.
func (s *Service) IssueTrackingCode(ctx context.Context, campaignID, creativeID, geo, segmentID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context error: %w", err)
	}
	if campaignID == "" || creativeID == "" || strings.TrimSpace(geo) == "" {
		return "", fmt.Errorf("%w: campaign, creative and geo are required", domain.ErrInvalidInput)
	}
	geo = strings.ToUpper(strings.TrimSpace(geo))

	existing, ok, err := s.codes.FindCode(ctx, campaignID, creativeID, geo, segmentID)
	if err != nil {
		return "", fmt.Errorf("find tracking code: %w", err)
	}
	if ok {
		return existing.Code, nil
	}

	tc := domain.TrackingCode{
		Code:       NewCode(campaignID, geo),
		CampaignID: campaignID,
		CreativeID: creativeID,
		Geo:        geo,
		SegmentID:  segmentID,
		CreatedAt:  s.cfg.Clock.Now(),
	}
	inserted, err := s.codes.InsertCode(ctx, tc)
	if err != nil {
		return "", fmt.Errorf("insert tracking code: %w", err)
	}
	if inserted {
		return tc.Code, nil
	}

	// lost the race, read the winner
	existing, ok, err = s.codes.FindCode(ctx, campaignID, creativeID, geo, segmentID)
	if err != nil {
		return "", fmt.Errorf("find tracking code: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("tracking code for %s/%s/%s vanished after conflict", campaignID, creativeID, geo)
	}
	return existing.Code, nil
}

func (s *Service) ListCodes(ctx context.Context, campaignID string) ([]domain.TrackingCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	return s.codes.ListCodes(ctx, campaignID)
}

// RecordEvent appends one visit or conversion. A conversion with no earlier
// visit on its code is kept and flagged as orphan. A repeated external id is
// acknowledged without writing.
func (s *Service) RecordEvent(ctx context.Context, in EventInput) (domain.EventAck, error) {
	if err := ctx.Err(); err != nil {
		return domain.EventAck{}, fmt.Errorf("context error: %w", err)
	}

	switch in.EventType {
	case domain.EventVisit:
		in.Revenue = nil
	case domain.EventConversion:
		if in.Revenue != nil && *in.Revenue < 0 {
			return domain.EventAck{}, fmt.Errorf("%w: negative revenue", domain.ErrInvalidInput)
		}
	default:
		return domain.EventAck{}, fmt.Errorf("%w: unknown event type %q", domain.ErrInvalidInput, in.EventType)
	}

	tc, ok, err := s.codes.GetCode(ctx, in.Code)
	if err != nil {
		return domain.EventAck{}, fmt.Errorf("get tracking code: %w", err)
	}
	if !ok {
		return domain.EventAck{}, fmt.Errorf("tracking code %q: %w", in.Code, domain.ErrNotFound)
	}

	if in.ExternalID != "" {
		prev, found, err := s.events.FindEventByExternalID(ctx, in.ExternalID)
		if err != nil {
			return domain.EventAck{}, fmt.Errorf("find event: %w", err)
		}
		if found {
			return domain.EventAck{EventID: prev.ID, Duplicate: true, OrphanConversion: prev.OrphanConversion}, nil
		}
	}

	now := s.cfg.Clock.Now()
	if in.OccurredAt.IsZero() {
		in.OccurredAt = now
	}

	ev := domain.AttributionEvent{
		ID:         uuid.NewString(),
		Code:       tc.Code,
		CampaignID: tc.CampaignID,
		CreativeID: tc.CreativeID,
		Geo:        tc.Geo,
		EventType:  in.EventType,
		Revenue:    in.Revenue,
		OccurredAt: in.OccurredAt,
		ReceivedAt: now,
	}
	if in.ExternalID != "" {
		ext := in.ExternalID
		ev.ExternalID = &ext
	}

	if in.EventType == domain.EventConversion {
		seen, err := s.events.HasVisitBefore(ctx, tc.Code, in.OccurredAt)
		if err != nil {
			return domain.EventAck{}, fmt.Errorf("check prior visit: %w", err)
		}
		ev.OrphanConversion = !seen
	}

	inserted, err := s.events.InsertEvent(ctx, ev)
	if err != nil {
		return domain.EventAck{}, fmt.Errorf("insert event: %w", err)
	}
	if !inserted {
		return domain.EventAck{Duplicate: true}, nil
	}

	s.invalidate(tc)
	metrics.AttributionEvents.WithLabelValues(string(in.EventType)).Inc()

	if ev.OrphanConversion {
		metrics.OrphanConversions.Inc()
		s.logOrphan(ctx, ev)
	}

	return domain.EventAck{EventID: ev.ID, OrphanConversion: ev.OrphanConversion}, nil
}

func (s *Service) logOrphan(ctx context.Context, ev domain.AttributionEvent) {
	orphanErr := fmt.Errorf("%w: conversion on %s without prior visit", domain.ErrOrphanEvent, ev.Code)
	logger.Warn("orphan_conversion", "campaign_id", ev.CampaignID, "code", ev.Code, "event_id", ev.ID)

	if s.opLog == nil {
		return
	}
	if err := s.opLog.Append(ctx, domain.OperatorLogEntry{
		CampaignID: ev.CampaignID,
		Kind:       domain.LogOrphanEvent,
		Reason:     orphanErr.Error(),
		Details: datatypes.JSONMap{
			"event_id":    ev.ID,
			"code":        ev.Code,
			"occurred_at": ev.OccurredAt.UTC().Format(time.RFC3339),
		},
	}); err != nil {
		logger.Warn("operator_log_failed", "campaign_id", ev.CampaignID, "error", err)
	}
}

// RecordSpend stores platform-reported delivery for a code.
func (s *Service) RecordSpend(ctx context.Context, in SpendInput) (domain.SpendEntry, error) {
	if err := ctx.Err(); err != nil {
		return domain.SpendEntry{}, fmt.Errorf("context error: %w", err)
	}
	if in.Amount < 0 || in.Impressions < 0 || in.Clicks < 0 || in.Views < 0 {
		return domain.SpendEntry{}, fmt.Errorf("%w: negative spend values", domain.ErrInvalidInput)
	}

	tc, ok, err := s.codes.GetCode(ctx, in.Code)
	if err != nil {
		return domain.SpendEntry{}, fmt.Errorf("get tracking code: %w", err)
	}
	if !ok {
		return domain.SpendEntry{}, fmt.Errorf("tracking code %q: %w", in.Code, domain.ErrNotFound)
	}

	if in.ReportedAt.IsZero() {
		in.ReportedAt = s.cfg.Clock.Now()
	}

	entry := domain.SpendEntry{
		ID:          uuid.NewString(),
		Code:        tc.Code,
		CampaignID:  tc.CampaignID,
		CreativeID:  tc.CreativeID,
		Geo:         tc.Geo,
		Amount:      in.Amount,
		Impressions: in.Impressions,
		Clicks:      in.Clicks,
		Views:       in.Views,
		ReportedAt:  in.ReportedAt,
	}
	if err := s.spend.InsertSpend(ctx, entry); err != nil {
		return domain.SpendEntry{}, fmt.Errorf("insert spend: %w", err)
	}

	s.invalidate(tc)
	return entry, nil
}

func validateQuery(q domain.LedgerQuery) error {
	n := 0
	for _, v := range []string{q.Code, q.CodePrefix, q.CampaignID} {
		if v != "" {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("%w: exactly one of code, code prefix or campaign is required", domain.ErrInvalidInput)
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return fmt.Errorf("%w: window end before start", domain.ErrInvalidInput)
	}
	return nil
}

// Aggregate returns totals for a code, code prefix or campaign.
func (s *Service) Aggregate(ctx context.Context, q domain.LedgerQuery) (domain.AttributionAggregate, error) {
	rows, err := s.AggregateBy(ctx, q, domain.GroupNone)
	if err != nil {
		return domain.AttributionAggregate{}, err
	}
	if len(rows) == 0 {
		return domain.AttributionAggregate{}, nil
	}
	return rows[0], nil
}

// AggregateBy breaks the totals down per geo, creative or arm.
func (s *Service) AggregateBy(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.AttributionAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	key := queryCacheKey("events", q, group)
	if v, ok := s.cached(key); ok {
		return v.([]domain.AttributionAggregate), nil
	}

	rows, err := s.events.AggregateEvents(ctx, q, group)
	if err != nil {
		return nil, fmt.Errorf("aggregate events: %w", err)
	}
	for i := range rows {
		if rows[i].Visits > 0 {
			rows[i].ConversionRate = float64(rows[i].Conversions) / float64(rows[i].Visits)
		}
	}

	s.store(key, rows)
	return rows, nil
}

func (s *Service) SpendBy(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.SpendAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	key := queryCacheKey("spend", q, group)
	if v, ok := s.cached(key); ok {
		return v.([]domain.SpendAggregate), nil
	}

	rows, err := s.spend.AggregateSpend(ctx, q, group)
	if err != nil {
		return nil, fmt.Errorf("aggregate spend: %w", err)
	}

	s.store(key, rows)
	return rows, nil
}

// GeoMetrics joins event and spend aggregates into the rolling per-geo
// metrics the allocator scores.
func (s *Service) GeoMetrics(ctx context.Context, campaignID string, from, to time.Time) ([]domain.GeoMetrics, error) {
	q := domain.LedgerQuery{CampaignID: campaignID, From: from, To: to}

	events, err := s.AggregateBy(ctx, q, domain.GroupGeo)
	if err != nil {
		return nil, err
	}
	spend, err := s.SpendBy(ctx, q, domain.GroupGeo)
	if err != nil {
		return nil, err
	}

	byGeo := map[string]*domain.GeoMetrics{}
	get := func(geo string) *domain.GeoMetrics {
		m, ok := byGeo[geo]
		if !ok {
			m = &domain.GeoMetrics{Geo: geo}
			byGeo[geo] = m
		}
		return m
	}
	for _, e := range events {
		get(e.Geo).Revenue = e.Revenue
	}
	for _, sp := range spend {
		m := get(sp.Geo)
		m.Spend = sp.Amount
		m.Impressions = sp.Impressions
		m.Clicks = sp.Clicks
		m.Views = sp.Views
		m.WindowEnd = sp.LastReportedAt
	}

	out := make([]domain.GeoMetrics, 0, len(byGeo))
	for _, m := range byGeo {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Geo < out[j].Geo })
	return out, nil
}
