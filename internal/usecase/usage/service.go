package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/normgate/internal/domain/usage"
	"github.com/kailas-cloud/normgate/internal/domain/usage/quota"
)

// Service handles usage reporting.
type Service struct {
	qr  QuotaReader
	now func() time.Time
}

// New creates a Service. qr can be nil (unlimited mode).
func New(qr QuotaReader) *Service {
	return &Service{qr: qr, now: func() time.Time { return time.Now().UTC() }}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now()
	var start, end int64
	var limit, used, remaining int64 = 0, 0, -1

	switch period {
	case domusage.PeriodDay:
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		dayEnd := dayStart.Add(24 * time.Hour)
		start = dayStart.UnixMilli()
		end = dayEnd.UnixMilli()
		if s.qr != nil {
			limit = s.qr.DailyLimit()
			used = s.qr.DailyUsed()
			remaining = s.qr.RemainingDaily()
		}
	case domusage.PeriodMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		monthEnd := monthStart.AddDate(0, 1, 0)
		start = monthStart.UnixMilli()
		end = monthEnd.UnixMilli()
		if s.qr != nil {
			limit = s.qr.MonthlyLimit()
			used = s.qr.MonthlyUsed()
			remaining = s.qr.RemainingMonthly()
		}
	default:
		// total: no period boundaries, counted since process start
		if s.qr != nil {
			limit = s.qr.MonthlyLimit()
			used = s.qr.TotalUsed()
			remaining = s.qr.RemainingMonthly()
		}
	}

	exhausted := limit > 0 && remaining == 0
	q := quota.New(limit, remaining, exhausted, end)

	return domusage.NewReport(period, start, end, used, q)
}
