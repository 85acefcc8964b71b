package chi

import "time"

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeNotFound            ErrorCode = "not_found"
	CodeQuotaExceeded       ErrorCode = "quota_exceeded"
	CodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	CodeUpstreamMalformed   ErrorCode = "upstream_malformed"
	CodeAnswerProviderError ErrorCode = "answer_provider_error"
	CodeNotImplemented      ErrorCode = "not_implemented"
	CodeInternalError       ErrorCode = "internal_error"
)

type errorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type previewResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Dependencia string `json:"dependencia"`
	Publicacion string `json:"publicacion"`
	Boletin     string `json:"boletin"`
}

type answerRequest struct {
	Question string `json:"question"`
	NormaID  string `json:"norma_id,omitempty"`
}

type answerResponse struct {
	Answer string `json:"answer"`
	Model  string `json:"model"`
}

type usageResponse struct {
	Period        string       `json:"period"`
	PeriodStartAt *time.Time   `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time   `json:"period_end_at,omitempty"`
	Usage         usageMetrics `json:"usage"`
	Quota         quotaStatus  `json:"quota"`
}

type usageMetrics struct {
	UpstreamRequests int64 `json:"upstream_requests"`
}

type quotaStatus struct {
	RequestsLimit     int64      `json:"requests_limit"`
	RequestsRemaining int64      `json:"requests_remaining"`
	IsExhausted       *bool      `json:"is_exhausted,omitempty"`
	ResetsAt          *time.Time `json:"resets_at,omitempty"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
