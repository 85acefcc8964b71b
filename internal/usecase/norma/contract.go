package norma

import (
	"context"

	domnorma "github.com/kailas-cloud/normgate/internal/domain/norma"
)

// Registry defines the registry lookups the service needs.
type Registry interface {
	Search(ctx context.Context, documentType, encodedFilters string) (domnorma.Page, error)
	GetByID(ctx context.Context, id string, summaryOnly bool) (domnorma.Record, error)
	GetByPublication(ctx context.Context, publicationID string) (domnorma.Page, error)
}
