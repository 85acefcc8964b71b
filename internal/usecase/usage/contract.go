package usage

// QuotaReader provides read-only access to upstream quota state.
type QuotaReader interface {
	DailyLimit() int64
	MonthlyLimit() int64
	DailyUsed() int64
	MonthlyUsed() int64
	TotalUsed() int64
	RemainingDaily() int64
	RemainingMonthly() int64
}
