package resource

import (
	"context"
	"net/http"
)

// Fetcher fetches raw resources from the registry.
type Fetcher interface {
	FetchResource(ctx context.Context, path, rawQuery string) (*http.Response, error)
}

// Rewriter rewrites placeholder links inside an HTML document.
type Rewriter interface {
	Rewrite(s string) string
}
