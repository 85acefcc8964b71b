package normgate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	domnorma "github.com/kailas-cloud/normgate/internal/domain/norma"
	"github.com/kailas-cloud/normgate/internal/domain/search/query"
	"github.com/kailas-cloud/normgate/internal/domain/search/request"
	"github.com/kailas-cloud/normgate/internal/transport/infoleg"
	healthuc "github.com/kailas-cloud/normgate/internal/usecase/health"
	normauc "github.com/kailas-cloud/normgate/internal/usecase/norma"
	"github.com/kailas-cloud/normgate/internal/version"
)

const (
	defaultBaseURL     = "https://servicios.infoleg.gob.ar/infolegInternet"
	defaultAPIPath     = "api/v2.0/nacionales/normativos"
	defaultPlaceholder = "%%server_name%%"
)

// Internal interfaces, swapped in tests.
type normaUseCase interface {
	Search(ctx context.Context, req request.Search) (domnorma.EnrichedPage, error)
	Get(ctx context.Context, id string, summaryOnly bool) (domnorma.Enriched, error)
	ByPublication(ctx context.Context, publicationID string) (domnorma.EnrichedPage, error)
	Preview(ctx context.Context, id string) (domnorma.Preview, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the normgate SDK entry point.
type Client struct {
	normas normaUseCase
	health healthUseCase
	obs    *observer
	now    func() time.Time
}

// New creates a Client. No network call is made.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		baseURL:     defaultBaseURL,
		apiPath:     defaultAPIPath,
		placeholder: defaultPlaceholder,
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.resourcePrefix == "" {
		cfg.resourcePrefix = cfg.baseURL
	}

	registry, err := infoleg.NewClient(&infoleg.Config{
		BaseURL:        cfg.baseURL,
		APIPath:        cfg.apiPath,
		RateLimitRPS:   cfg.rateLimitRPS,
		RateLimitBurst: cfg.rateLimitBurst,
		UserAgent:      "normgate-sdk/" + version.Version,
		HTTPClient:     cfg.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("normgate: %w", err)
	}
	rewriter, err := domnorma.NewRewriter(cfg.placeholder, cfg.resourcePrefix)
	if err != nil {
		return nil, fmt.Errorf("normgate: %w", err)
	}
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		normas: normauc.New(registry, domnorma.DefaultPolicy(), rewriter),
		health: healthuc.New(registry, nil, nil),
		obs:    obs,
		now:    time.Now,
	}, nil
}

// Search lists norms of documentType ("leyes", "decretos", ...) matching filters.
// Later filters with the same key replace earlier ones.
func (c *Client) Search(ctx context.Context, documentType string, filters ...Filter) (res *SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	var f query.Filters
	for _, flt := range filters {
		f.Set(flt.Key, flt.Value)
	}
	req, err := request.New(documentType, f, c.now())
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", documentType, err)
	}
	page, err := c.normas.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", documentType, err)
	}
	return toSearchResult(page)
}

// Get returns the full norm with its texts.
func (c *Client) Get(ctx context.Context, id int64) (*Norma, error) {
	return c.get(ctx, "get", id, false)
}

// GetSummary returns the norm without its texts.
func (c *Client) GetSummary(ctx context.Context, id int64) (*Norma, error) {
	return c.get(ctx, "get_summary", id, true)
}

func (c *Client) get(ctx context.Context, op string, id int64, summaryOnly bool) (n *Norma, err error) {
	start := time.Now()
	defer func() { c.obs.observe(op, start, err) }()

	e, err := c.normas.Get(ctx, strconv.FormatInt(id, 10), summaryOnly)
	if err != nil {
		return nil, fmt.Errorf("get norma %d: %w", id, err)
	}
	out, err := toNorma(e)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ByPublication lists the norms published in one Boletín Oficial issue.
func (c *Client) ByPublication(ctx context.Context, publicationID string) (res *SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("by_publication", start, err) }()

	page, err := c.normas.ByPublication(ctx, publicationID)
	if err != nil {
		return nil, fmt.Errorf("publication %s: %w", publicationID, err)
	}
	return toSearchResult(page)
}

// Preview returns the share-card metadata of a norm.
func (c *Client) Preview(ctx context.Context, id int64) (p *Preview, err error) {
	start := time.Now()
	defer func() { c.obs.observe("preview", start, err) }()

	pv, err := c.normas.Preview(ctx, strconv.FormatInt(id, 10))
	if err != nil {
		return nil, fmt.Errorf("preview norma %d: %w", id, err)
	}
	return toPreview(pv), nil
}

// Ping reports whether the registry host answers.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	report := c.health.Check(ctx)
	if report.Status == healthuc.Unhealthy {
		return fmt.Errorf("ping: registry %s: %w", report.Checks[healthuc.ComponentRegistry], ErrUpstreamUnavailable)
	}
	return nil
}
