package normgate

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	baseURL        string
	apiPath        string
	httpClient     *http.Client
	rateLimitRPS   float64
	rateLimitBurst int

	placeholder    string
	resourcePrefix string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithBaseURL sets the registry root, e.g. a mirror or a test server.
// Defaults to https://servicios.infoleg.gob.ar/infolegInternet.
func WithBaseURL(u string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = u
	})
}

// WithAPIPath sets the path of the norms API below the base URL.
// Defaults to api/v2.0/nacionales/normativos.
func WithAPIPath(p string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiPath = p
	})
}

// WithHTTPClient replaces the HTTP client used for registry calls.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithRateLimit caps outbound registry calls. rps <= 0 disables the limiter (default).
func WithRateLimit(rps float64, burst int) Option {
	return optionFunc(func(c *clientConfig) {
		c.rateLimitRPS = rps
		c.rateLimitBurst = burst
	})
}

// WithLinkRewrite replaces placeholder in norm texts with prefix.
// Defaults: "%%server_name%%" rewritten to the registry base URL.
func WithLinkRewrite(placeholder, prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.placeholder = placeholder
		c.resourcePrefix = prefix
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
