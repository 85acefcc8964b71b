package normgate

import (
	"context"

	domnorma "github.com/kailas-cloud/normgate/internal/domain/norma"
	"github.com/kailas-cloud/normgate/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/normgate/internal/usecase/health"
)

type mockNormaUC struct {
	searchFn        func(ctx context.Context, req request.Search) (domnorma.EnrichedPage, error)
	getFn           func(ctx context.Context, id string, summaryOnly bool) (domnorma.Enriched, error)
	byPublicationFn func(ctx context.Context, publicationID string) (domnorma.EnrichedPage, error)
	previewFn       func(ctx context.Context, id string) (domnorma.Preview, error)
}

func (m *mockNormaUC) Search(ctx context.Context, req request.Search) (domnorma.EnrichedPage, error) {
	return m.searchFn(ctx, req)
}

func (m *mockNormaUC) Get(ctx context.Context, id string, summaryOnly bool) (domnorma.Enriched, error) {
	return m.getFn(ctx, id, summaryOnly)
}

func (m *mockNormaUC) ByPublication(ctx context.Context, publicationID string) (domnorma.EnrichedPage, error) {
	return m.byPublicationFn(ctx, publicationID)
}

func (m *mockNormaUC) Preview(ctx context.Context, id string) (domnorma.Preview, error) {
	return m.previewFn(ctx, id)
}

type mockHealthUC struct {
	status healthuc.Status
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report {
	result := healthuc.CheckOK
	if m.status == healthuc.Unhealthy {
		result = healthuc.CheckError
	}
	return healthuc.Report{
		Status: m.status,
		Checks: map[string]healthuc.CheckResult{healthuc.ComponentRegistry: result},
	}
}
