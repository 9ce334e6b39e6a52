package service

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/haulpass/cdl-backend/internal/bank"
	"github.com/haulpass/cdl-backend/internal/config"
	"github.com/haulpass/cdl-backend/internal/model"
	"github.com/haulpass/cdl-backend/internal/repository"
	"github.com/haulpass/cdl-backend/internal/store"
)

// DashboardSummary aggregates a device's study standing for the home screen.
type DashboardSummary struct {
	LastScore      *int                   `json:"last_score"`
	WeakestDomain  *string                `json:"weakest_domain"`
	MasteredCount  int                    `json:"mastered_count"`
	Stats          repository.PassStats   `json:"stats"`
	RecentAttempts []repository.ReportRow `json:"recent_attempts"`
}

// CategoryProgress is per-category mastery coverage for the study browser.
type CategoryProgress struct {
	Category string `json:"category"`
	Total    int    `json:"total"`
	Mastered int    `json:"mastered"`
}

// DashboardService reads the well-known report and mastery entries the
// engines write, plus the archived attempt history.
type DashboardService struct {
	kv      store.KeyValueStore
	reports *repository.ReportRepository
	bank    *bank.Bank
	log     zerolog.Logger
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(kv store.KeyValueStore, reports *repository.ReportRepository, b *bank.Bank, log zerolog.Logger) *DashboardService {
	return &DashboardService{
		kv:      kv,
		reports: reports,
		bank:    b,
		log:     log.With().Str("component", "dashboard_service").Logger(),
	}
}

// Summary assembles the home-screen view. The score and weakest-domain
// entries are absent until the device completes its first exam.
func (s *DashboardService) Summary(ctx context.Context, deviceID string) (DashboardSummary, error) {
	sk := config.StorageKey
	summary := DashboardSummary{}

	if raw, ok, err := s.kv.Get(ctx, sk.DeviceLastScoreKey(deviceID)); err == nil && ok {
		if score, convErr := strconv.Atoi(string(raw)); convErr == nil {
			summary.LastScore = &score
		}
	}
	if raw, ok, err := s.kv.Get(ctx, sk.DeviceWeakestDomainKey(deviceID)); err == nil && ok {
		domain := string(raw)
		summary.WeakestDomain = &domain
	}
	summary.MasteredCount = len(s.masteredIDs(ctx, deviceID))

	stats, err := s.reports.Stats(ctx, deviceID)
	if err != nil {
		return DashboardSummary{}, err
	}
	summary.Stats = stats

	recent, err := s.reports.ListRecent(ctx, deviceID, 10)
	if err != nil {
		return DashboardSummary{}, err
	}
	if recent == nil {
		recent = []repository.ReportRow{}
	}
	summary.RecentAttempts = recent

	return summary, nil
}

// AnswerLog returns the raw per-question log of the most recent completed
// session, or nil when none exists.
func (s *DashboardService) AnswerLog(ctx context.Context, deviceID string) ([]model.AnswerLogEntry, error) {
	raw, ok, err := s.kv.Get(ctx, config.StorageKey.DeviceAnswerLogKey(deviceID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var entries []model.AnswerLogEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.log.Warn().Str("device_id", deviceID).Err(err).Msg("stored answer log unreadable")
		return nil, nil
	}
	return entries, nil
}

// Progress breaks mastery down by category against the full catalog.
func (s *DashboardService) Progress(ctx context.Context, deviceID string) []CategoryProgress {
	masteredByCategory := make(map[string]int)
	for _, id := range s.masteredIDs(ctx, deviceID) {
		if q, ok := s.bank.Resolve(id); ok {
			masteredByCategory[q.Category]++
		}
	}

	counts := s.bank.Categories()
	progress := make([]CategoryProgress, 0, len(counts))
	for _, cc := range counts {
		progress = append(progress, CategoryProgress{
			Category: cc.Name,
			Total:    cc.Questions,
			Mastered: masteredByCategory[cc.Name],
		})
	}
	return progress
}

func (s *DashboardService) masteredIDs(ctx context.Context, deviceID string) []int {
	raw, ok, err := s.kv.Get(ctx, config.StorageKey.DeviceMasteryKey(deviceID))
	if err != nil || !ok {
		return nil
	}
	var ids []int
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil
	}
	return ids
}
