package resource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/normgate/internal/domain"
	domres "github.com/kailas-cloud/normgate/internal/domain/resource"
	"github.com/kailas-cloud/normgate/internal/logger"
	"github.com/kailas-cloud/normgate/internal/metrics"
)

// DefaultMaxEnvelopeBytes bounds how much of a JSON response is buffered for classification.
const DefaultMaxEnvelopeBytes = 32 << 20

const htmlContentType = "text/html; charset=utf-8"

// hopHeaders are connection-level headers never forwarded to the client.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Response is a resource ready to be written to the client.
// The caller must close Body.
type Response struct {
	Kind   domres.Kind
	Status int
	Header http.Header
	Body   io.ReadCloser
}

// Service re-serves registry resources. JSON envelopes carrying HTML are
// unwrapped and their links rewritten; everything else passes through.
type Service struct {
	fetcher  Fetcher
	rewriter Rewriter
	maxBytes int64
}

// New creates a resource service.
func New(fetcher Fetcher, rewriter Rewriter) *Service {
	return &Service{fetcher: fetcher, rewriter: rewriter, maxBytes: DefaultMaxEnvelopeBytes}
}

// WithMaxEnvelopeBytes overrides the classification buffer limit.
func (s *Service) WithMaxEnvelopeBytes(n int64) *Service {
	if n > 0 {
		s.maxBytes = n
	}
	return s
}

// Fetch retrieves the resource at escapedPath (relative to the registry base).
func (s *Service) Fetch(ctx context.Context, escapedPath, rawQuery string) (*Response, error) {
	escapedPath, err := cleanPath(escapedPath)
	if err != nil {
		return nil, err
	}

	resp, err := s.fetcher.FetchResource(ctx, escapedPath, rawQuery)
	if err != nil {
		return nil, fmt.Errorf("fetch resource: %w", err)
	}

	if !domres.IsEnvelopeCandidate(resp.StatusCode, resp.Header.Get("Content-Type")) {
		return s.stream(resp, resp.Body), nil
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("read resource: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	if int64(len(buf)) > s.maxBytes {
		logger.FromContext(ctx).Debug("resource too large to classify, streaming",
			zap.String("path", escapedPath),
		)
		return s.stream(resp, readCloser{io.MultiReader(bytes.NewReader(buf), resp.Body), resp.Body}), nil
	}
	_ = resp.Body.Close()

	classified := domres.Classify(buf)
	if classified.Kind != domres.KindHTML {
		return s.stream(resp, io.NopCloser(bytes.NewReader(buf))), nil
	}

	html := s.rewriter.Rewrite(classified.HTML)
	metrics.ResourceResponsesTotal.WithLabelValues(domres.KindHTML.String()).Inc()
	h := http.Header{}
	h.Set("Content-Type", htmlContentType)
	h.Set("Content-Length", strconv.Itoa(len(html)))
	return &Response{
		Kind:   domres.KindHTML,
		Status: http.StatusOK,
		Header: h,
		Body:   io.NopCloser(strings.NewReader(html)),
	}, nil
}

func (s *Service) stream(resp *http.Response, body io.ReadCloser) *Response {
	metrics.ResourceResponsesTotal.WithLabelValues(domres.KindStream.String()).Inc()
	h := resp.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	for _, k := range hopHeaders {
		h.Del(k)
	}
	return &Response{Kind: domres.KindStream, Status: resp.StatusCode, Header: h, Body: body}
}

// cleanPath rejects empty paths and dot segments.
func cleanPath(escapedPath string) (string, error) {
	escapedPath = strings.TrimLeft(escapedPath, "/")
	if escapedPath == "" {
		return "", fmt.Errorf("%w: recurso requerido", domain.ErrInvalidRequest)
	}
	for _, seg := range strings.Split(escapedPath, "/") {
		name, err := url.PathUnescape(seg)
		if err != nil {
			return "", fmt.Errorf("%w: ruta inválida", domain.ErrInvalidRequest)
		}
		if name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
			return "", fmt.Errorf("%w: ruta inválida", domain.ErrInvalidRequest)
		}
	}
	return escapedPath, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
