package usage

import "github.com/kailas-cloud/normgate/internal/domain/usage/quota"

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodTotal Period = "total"
)

// IsValid reports whether p is a known period.
func (p Period) IsValid() bool {
	switch p {
	case PeriodDay, PeriodMonth, PeriodTotal:
		return true
	}
	return false
}

// Report is an upstream usage report for a time period.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	requests    int64
	quota       quota.Quota
}

// NewReport creates a usage report.
func NewReport(period Period, start, end, requests int64, q quota.Quota) Report {
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		requests:    requests,
		quota:       q,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis).
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// UpstreamRequests returns the number of registry calls in the period.
func (r *Report) UpstreamRequests() int64 { return r.requests }

// Quota returns the allowance status.
func (r *Report) Quota() quota.Quota { return r.quota }
