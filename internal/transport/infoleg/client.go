// Package infoleg is the HTTP client of the Infoleg legal-norms registry.
package infoleg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/normgate/internal/domain"
	"github.com/kailas-cloud/normgate/internal/domain/norma"
	"github.com/kailas-cloud/normgate/internal/metrics"
)

// maxBodyBytes caps decoded JSON responses.
const maxBodyBytes = 64 << 20

// Operation labels used in logs and metrics.
const (
	OpSearch           = "search"
	OpGetByID          = "get_by_id"
	OpGetByPublication = "get_by_publication"
	OpFetchResource    = "fetch_resource"
)

// Config holds the registry client settings.
type Config struct {
	BaseURL        string
	APIPath        string
	RateLimitRPS   float64 // 0 = unlimited
	RateLimitBurst int
	UserAgent      string
	HTTPClient     *http.Client // nil = client without timeout
	Logger         *zap.Logger
}

// Client talks to the registry. It never caches and never retries.
type Client struct {
	http      *http.Client
	baseURL   string
	apiPath   string
	limiter   *rate.Limiter
	userAgent string
	logger    *zap.Logger
}

// NewClient creates a registry client.
func NewClient(cfg *Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("infoleg: invalid base url %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		// No timeout: the inbound request context bounds every call.
		hc = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		http:      hc,
		baseURL:   base,
		apiPath:   strings.Trim(cfg.APIPath, "/"),
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	return c, nil
}

// Search runs GET {base}/{api}/{documentType}?{encodedFilters}.
func (c *Client) Search(ctx context.Context, documentType, encodedFilters string) (norma.Page, error) {
	u := c.apiURL(url.PathEscape(documentType))
	u.RawQuery = encodedFilters

	var page norma.Page
	if err := c.getJSON(ctx, OpSearch, u, &page); err != nil {
		return norma.Page{}, err
	}
	return page, nil
}

// GetByID runs GET {base}/{api}?id={id}[&resumen=true]. The registry answers
// either with the record itself or with a one-element results list.
func (c *Client) GetByID(ctx context.Context, id string, summaryOnly bool) (norma.Record, error) {
	u := c.apiURL("")
	q := url.Values{}
	q.Set("id", id)
	if summaryOnly {
		q.Set("resumen", "true")
	}
	u.RawQuery = q.Encode()

	var raw json.RawMessage
	if err := c.getJSON(ctx, OpGetByID, u, &raw); err != nil {
		return norma.Record{}, err
	}

	var page norma.Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return norma.Record{}, c.malformed(OpGetByID, err)
	}
	if page.Has(norma.AttrResults) {
		if len(page.Results) == 0 {
			return norma.Record{}, fmt.Errorf("norma %s: %w", id, domain.ErrNotFound)
		}
		return page.Results[0], nil
	}

	var rec norma.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return norma.Record{}, c.malformed(OpGetByID, err)
	}
	return rec, nil
}

// GetByPublication runs GET {base}/{api}/publicaciones/{publicationID}.
func (c *Client) GetByPublication(ctx context.Context, publicationID string) (norma.Page, error) {
	u := c.apiURL("publicaciones/" + url.PathEscape(publicationID))

	var page norma.Page
	if err := c.getJSON(ctx, OpGetByPublication, u, &page); err != nil {
		return norma.Page{}, err
	}
	return page, nil
}

// FetchResource runs GET {base}/{escapedPath}?{rawQuery} and returns the
// response unread. Any status is returned as is; the caller closes the body.
func (c *Client) FetchResource(ctx context.Context, escapedPath, rawQuery string) (*http.Response, error) {
	u, err := url.Parse(c.baseURL + "/" + strings.TrimLeft(escapedPath, "/"))
	if err != nil {
		return nil, fmt.Errorf("resource path %q: %w", escapedPath, domain.ErrInvalidRequest)
	}
	u.RawQuery = rawQuery

	req, err := c.newRequest(ctx, u)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")

	resp, err := c.do(req, OpFetchResource)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// HealthCheck verifies the registry host answers HTTP at all. It does not
// count against the quota and ignores the status code.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", http.NoBody)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("registry unreachable: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) apiURL(suffix string) *url.URL {
	raw := c.baseURL + "/" + c.apiPath
	if suffix != "" {
		raw += "/" + suffix
	}
	u, err := url.Parse(raw)
	if err != nil {
		// baseURL was validated and suffixes are escaped.
		panic(fmt.Sprintf("infoleg: build url %q: %v", raw, err))
	}
	return u
}

func (c *Client) newRequest(ctx context.Context, u *url.URL) (*http.Request, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", errors.Join(domain.ErrUpstreamUnavailable, err))
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", errors.Join(domain.ErrInvalidRequest, err))
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(op, "error").Inc()
		metrics.UpstreamErrorsTotal.WithLabelValues(op, "unavailable").Inc()
		c.logger.Warn("Registry request failed",
			zap.String("operation", op),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s: %w", op, errors.Join(domain.ErrUpstreamUnavailable, err))
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(op, metrics.StatusClass(resp.StatusCode)).Inc()
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, op string, u *url.URL, dest any) error {
	req, err := c.newRequest(ctx, u)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	// Set explicitly, so net/http leaves decompression to readBody.
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.do(req, op)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readBody(resp)
	if err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues(op, "unavailable").Inc()
		return fmt.Errorf("%s: read body: %w", op, errors.Join(domain.ErrUpstreamUnavailable, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamErrorsTotal.WithLabelValues(op, "rejected").Inc()
		c.logger.Info("Registry rejected request",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%s: %w", op, domain.NewUpstreamError(resp.StatusCode, body))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return c.malformed(op, err)
	}
	return nil
}

func (c *Client) malformed(op string, err error) error {
	metrics.UpstreamErrorsTotal.WithLabelValues(op, "malformed").Inc()
	return fmt.Errorf("%s: decode response: %w", op, errors.Join(domain.ErrUpstreamMalformed, err))
}

// readBody reads a JSON response, decoding gzip when the registry used it.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if strings.EqualFold(strings.TrimSpace(resp.Header.Get("Content-Encoding")), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes+1))
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response larger than %d bytes", maxBodyBytes)
	}
	return body, nil
}
