package service

import (
	"context"
	"time"

	"cashregister/internal/dto"
	"cashregister/internal/report"
	"cashregister/internal/repository"
)

const recentEntries = 10

type DashboardService interface {
	Get(ctx context.Context) (*dto.DashboardResponse, error)
}

type dashboardService struct {
	repo repository.RegisterRepository
	now  func() time.Time
}

func NewDashboardService(repo repository.RegisterRepository) DashboardService {
	return &dashboardService{repo: repo, now: utcNow}
}

// Get reads the last seven days of entries (UTC calendar days) and folds them
// into the dashboard. Recent entries are drawn from the same window.
func (s *dashboardService) Get(ctx context.Context) (*dto.DashboardResponse, error) {
	now := s.now()
	y, m, d := now.Date()
	since := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -6)

	entries, err := s.repo.ListEntriesSince(ctx, since)
	if err != nil {
		return nil, err
	}
	sum := report.Build(entries, now, recentEntries)

	resp := &dto.DashboardResponse{
		Date:           sum.Date,
		TodayTotal:     sum.Today.Decimal(),
		YesterdayTotal: sum.Yesterday.Decimal(),
		GrowthPct:      sum.GrowthPct,
		WeeklyCounts:   make([]dto.DailyCount, 0, len(sum.Weekly)),
		Recent:         make([]dto.EntryResponse, 0, len(sum.Recent)),
	}
	for _, dc := range sum.Weekly {
		resp.WeeklyCounts = append(resp.WeeklyCounts, dto.DailyCount{Date: dc.Date, Count: dc.Count})
	}
	for _, e := range sum.Recent {
		resp.Recent = append(resp.Recent, toEntryResponse(e, nil))
	}
	return resp, nil
}
