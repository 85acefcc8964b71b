package quota

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/normgate/internal/domain/norma"
	"github.com/kailas-cloud/normgate/internal/metrics"
)

// Upstream is the registry client surface guarded by the quota.
type Upstream interface {
	Search(ctx context.Context, documentType, encodedFilters string) (norma.Page, error)
	GetByID(ctx context.Context, id string, summaryOnly bool) (norma.Record, error)
	GetByPublication(ctx context.Context, publicationID string) (norma.Page, error)
	FetchResource(ctx context.Context, path, rawQuery string) (*http.Response, error)
}

// Checker is the local interface for quota enforcement.
type Checker interface {
	Check(ctx context.Context) error
	Record(n int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// GuardedUpstream wraps Upstream with quota enforcement.
// Transport metrics are recorded in transport/infoleg; this layer owns
// quota tracking and the quota gauge only.
type GuardedUpstream struct {
	inner  Upstream
	quota  Checker
	logger *zap.Logger
}

// NewGuardedUpstream wraps a registry client. quota can be nil (unlimited mode).
func NewGuardedUpstream(inner Upstream, quota Checker, logger *zap.Logger) *GuardedUpstream {
	return &GuardedUpstream{inner: inner, quota: quota, logger: logger}
}

// Search checks the quota, then searches by document type.
func (g *GuardedUpstream) Search(ctx context.Context, documentType, encodedFilters string) (norma.Page, error) {
	if err := g.check(ctx, "search"); err != nil {
		return norma.Page{}, err
	}
	defer g.record()
	return g.inner.Search(ctx, documentType, encodedFilters) //nolint:wrapcheck // decorator is transparent
}

// GetByID checks the quota, then looks a norm up by id.
func (g *GuardedUpstream) GetByID(ctx context.Context, id string, summaryOnly bool) (norma.Record, error) {
	if err := g.check(ctx, "get_by_id"); err != nil {
		return norma.Record{}, err
	}
	defer g.record()
	return g.inner.GetByID(ctx, id, summaryOnly) //nolint:wrapcheck // decorator is transparent
}

// GetByPublication checks the quota, then looks norms up by publication id.
func (g *GuardedUpstream) GetByPublication(ctx context.Context, publicationID string) (norma.Page, error) {
	if err := g.check(ctx, "get_by_publication"); err != nil {
		return norma.Page{}, err
	}
	defer g.record()
	return g.inner.GetByPublication(ctx, publicationID) //nolint:wrapcheck // decorator is transparent
}

// FetchResource checks the quota, then fetches a raw resource.
func (g *GuardedUpstream) FetchResource(ctx context.Context, path, rawQuery string) (*http.Response, error) {
	if err := g.check(ctx, "fetch_resource"); err != nil {
		return nil, err
	}
	defer g.record()
	return g.inner.FetchResource(ctx, path, rawQuery) //nolint:wrapcheck // decorator is transparent
}

func (g *GuardedUpstream) check(ctx context.Context, op string) error {
	if g.quota == nil {
		return nil
	}
	if err := g.quota.Check(ctx); err != nil {
		g.logger.Error("Upstream quota exceeded",
			zap.String("operation", op),
			zap.Error(err),
		)
		return fmt.Errorf("quota check: %w", err)
	}
	return nil
}

func (g *GuardedUpstream) record() {
	if g.quota == nil {
		return
	}
	g.quota.Record(1)
	remaining := metrics.QuotaRequestsRemaining
	remaining.WithLabelValues("daily").Set(float64(g.quota.RemainingDaily()))
	remaining.WithLabelValues("monthly").Set(float64(g.quota.RemainingMonthly()))
}
