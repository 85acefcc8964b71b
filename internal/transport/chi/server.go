package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/normgate/internal/domain"
	"github.com/kailas-cloud/normgate/internal/domain/search/request"
	domusage "github.com/kailas-cloud/normgate/internal/domain/usage"
	"github.com/kailas-cloud/normgate/internal/logger"
	answeruc "github.com/kailas-cloud/normgate/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/normgate/internal/usecase/health"
	normauc "github.com/kailas-cloud/normgate/internal/usecase/norma"
	resourceuc "github.com/kailas-cloud/normgate/internal/usecase/resource"
	usageuc "github.com/kailas-cloud/normgate/internal/usecase/usage"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// upstreamFallbackBody is sent when the registry rejects a request without a JSON body.
var upstreamFallbackBody = json.RawMessage(`{"error":"Respuesta no válida del servidor Infoleg"}`)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Services groups the use cases served over HTTP.
type Services struct {
	Normas    *normauc.Service
	Resources *resourceuc.Service
	Answers   *answeruc.Service
	Usage     *usageuc.Service
	Health    *healthuc.Service
}

// Server exposes the gateway over a chi router.
type Server struct {
	normas         *normauc.Service
	resources      *resourceuc.Service
	answers        *answeruc.Service
	usage          *usageuc.Service
	health         *healthuc.Service
	resourcePrefix string
	logger         *zap.Logger
	errorHandlers  []errorHandler
	now            func() time.Time
}

// NewServer creates an HTTP API server. resourcePrefix is the path the
// rewritten resource links point to.
func NewServer(svc Services, resourcePrefix string, logger *zap.Logger) *Server {
	s := &Server{
		normas:         svc.Normas,
		resources:      svc.Resources,
		answers:        svc.Answers,
		usage:          svc.Usage,
		health:         svc.Health,
		resourcePrefix: resourcePrefix,
		logger:         logger,
		now:            time.Now,
	}
	s.errorHandlers = []errorHandler{
		upstreamErrorHandler,
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeBadRequest),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusTooManyRequests, CodeQuotaExceeded),
		sentinelHandler(domain.ErrUpstreamUnavailable, http.StatusBadGateway, CodeUpstreamUnavailable),
		sentinelHandler(domain.ErrUpstreamMalformed, http.StatusBadGateway, CodeUpstreamMalformed),
		sentinelHandler(domain.ErrAnswerProviderError, http.StatusBadGateway, CodeAnswerProviderError),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, CodeNotImplemented),
	}
	return s
}

// Register mounts every route on r.
func (s *Server) Register(r chi.Router) {
	r.Post("/api/v1/normas/search", s.SearchNormas)
	r.Get("/api/v1/normas/publicaciones/{publicationId}", s.GetNormasByPublication)
	r.Get("/api/v1/normas/{id}", s.GetNorma)
	r.Get("/api/v1/normas/{id}/preview", s.GetNormaPreview)
	r.Post("/api/v1/answers", s.CreateAnswer)
	r.Get(s.resourcePrefix+"/*", s.GetResource)
	r.Get("/usage", s.GetUsage)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// SearchNormas handles POST /api/v1/normas/search.
func (s *Server) SearchNormas(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req, err := request.Parse(body, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	page, err := s.normas.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// GetNorma handles GET /api/v1/normas/{id}.
func (s *Server) GetNorma(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bindNormaID(w, r)
	if !ok {
		return
	}

	var resumen *bool
	if err := runtime.BindQueryParameter("form", true, false, "resumen", r.URL.Query(), &resumen); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter resumen: "+err.Error())
		return
	}

	norma, err := s.normas.Get(r.Context(), id, derefBool(resumen))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, norma)
}

// GetNormaPreview handles GET /api/v1/normas/{id}/preview.
func (s *Server) GetNormaPreview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bindNormaID(w, r)
	if !ok {
		return
	}

	p, err := s.normas.Preview(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		ID:          p.ID,
		Title:       p.Title,
		Summary:     p.Summary,
		Dependencia: p.Dependencia,
		Publicacion: p.Publicacion,
		Boletin:     p.Boletin,
	})
}

// GetNormasByPublication handles GET /api/v1/normas/publicaciones/{publicationId}.
func (s *Server) GetNormasByPublication(w http.ResponseWriter, r *http.Request) {
	var publicationID string
	err := runtime.BindStyledParameterWithOptions("simple", "publicationId", chi.URLParam(r, "publicationId"),
		&publicationID, runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter publicationId: "+err.Error())
		return
	}

	page, err := s.normas.ByPublication(r.Context(), publicationID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// CreateAnswer handles POST /api/v1/answers.
func (s *Server) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	a, err := s.answers.Ask(r.Context(), req.Question, req.NormaID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{Answer: a.Text, Model: a.Model})
}

// GetUsage handles GET /usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	var periodParam *string
	if err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &periodParam); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter period: "+err.Error())
		return
	}

	period := domusage.PeriodMonth
	if periodParam != nil {
		period = domusage.Period(*periodParam)
		if !period.IsValid() {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "period must be day, month or total")
			return
		}
	}

	report := s.usage.GetReport(r.Context(), period)

	q := report.Quota()
	isExhausted := q.IsExhausted()
	resp := usageResponse{
		Period: string(report.Period()),
		Usage:  usageMetrics{UpstreamRequests: report.UpstreamRequests()},
		Quota: quotaStatus{
			RequestsLimit:     q.RequestsLimit(),
			RequestsRemaining: q.RequestsRemaining(),
			IsExhausted:       &isExhausted,
		},
	}

	if report.PeriodStart() > 0 {
		start := time.UnixMilli(report.PeriodStart()).UTC()
		end := time.UnixMilli(report.PeriodEnd()).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}

	if q.ResetsAt() > 0 {
		resetsAt := time.UnixMilli(q.ResetsAt()).UTC()
		resp.Quota.ResetsAt = &resetsAt
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health. A degraded gateway still serves the
// registry, so only an unhealthy one answers 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) bindNormaID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"),
		&id, runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter id: "+err.Error())
		return "", false
	}
	return strconv.FormatInt(id, 10), true
}

func derefBool(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-facing message without exposing internals.
// Input validation messages are the caller's own and are returned whole.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidRequest) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrQuotaExceeded,
		domain.ErrUpstreamUnavailable,
		domain.ErrUpstreamMalformed,
		domain.ErrAnswerProviderError,
		domain.ErrNotImplemented,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// upstreamErrorHandler relays a registry rejection with the registry's own
// status and JSON body.
func upstreamErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	body := ue.Body
	if body == nil {
		body = upstreamFallbackBody
	}
	status := ue.StatusCode
	if status < 400 || status > 599 {
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
