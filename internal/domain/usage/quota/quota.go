package quota

// Quota is a snapshot of the upstream request allowance for one period.
type Quota struct {
	requestsLimit     int64
	requestsRemaining int64
	isExhausted       bool
	resetsAt          int64 // unix millis, converted to ISO 8601 at transport layer
}

// New creates a Quota snapshot. A zero limit means unlimited.
func New(limit, remaining int64, isExhausted bool, resetsAt int64) Quota {
	return Quota{
		requestsLimit:     limit,
		requestsRemaining: remaining,
		isExhausted:       isExhausted,
		resetsAt:          resetsAt,
	}
}

// RequestsLimit returns the request cap (0 = unlimited).
func (q Quota) RequestsLimit() int64 { return q.requestsLimit }

// RequestsRemaining returns requests left (-1 = unlimited).
func (q Quota) RequestsRemaining() int64 { return q.requestsRemaining }

// IsExhausted reports whether the allowance is spent.
func (q Quota) IsExhausted() bool { return q.isExhausted }

// ResetsAt returns the reset timestamp (unix millis, 0 = never).
func (q Quota) ResetsAt() int64 { return q.resetsAt }
