package norma

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/normgate/internal/domain"
	domnorma "github.com/kailas-cloud/normgate/internal/domain/norma"
	"github.com/kailas-cloud/normgate/internal/domain/search/request"
	"github.com/kailas-cloud/normgate/internal/logger"
)

// Summary attributes returned by a resumen=true lookup.
const (
	attrSummaryTitle = "tituloSumario"
	attrShortTitle   = "tituloResumido"
	keyLimit         = "limit"
)

// Service serves norm searches and lookups with enriched records.
type Service struct {
	registry Registry
	policy   *domnorma.Policy
	rewriter *domnorma.Rewriter
	strip    *bluemonday.Policy
	now      func() time.Time
}

// New creates a norma service.
func New(registry Registry, policy *domnorma.Policy, rewriter *domnorma.Rewriter) *Service {
	return &Service{
		registry: registry,
		policy:   policy,
		rewriter: rewriter,
		strip:    bluemonday.StrictPolicy(),
		now:      time.Now,
	}
}

// Search runs a search and enriches every result. A single candidate year
// is sent as the sanction year. Several candidates are searched once per
// year, restricted to that year's publications, and merged in year order.
func (s *Service) Search(ctx context.Context, req request.Search) (domnorma.EnrichedPage, error) {
	years := req.Years()
	switch len(years) {
	case 0:
		return s.searchOnce(ctx, req.DocumentType(), req.Filters().Encode())
	case 1:
		return s.searchOnce(ctx, req.DocumentType(), req.ForSanctionYear(years[0]).Encode())
	}

	page, err := s.searchByYear(ctx, req, years)
	if err != nil {
		return domnorma.EnrichedPage{}, err
	}
	return domnorma.EnrichPage(s.policy, page), nil
}

func (s *Service) searchOnce(ctx context.Context, documentType, encoded string) (domnorma.EnrichedPage, error) {
	page, err := s.registry.Search(ctx, documentType, encoded)
	if err != nil {
		return domnorma.EnrichedPage{}, fmt.Errorf("search %s: %w", documentType, err)
	}
	return domnorma.EnrichPage(s.policy, page), nil
}

func (s *Service) searchByYear(ctx context.Context, req request.Search, years []int) (domnorma.Page, error) {
	today := s.now()
	buckets := make([][]domnorma.Record, len(years))

	g, gctx := errgroup.WithContext(ctx)
	for i, year := range years {
		g.Go(func() error {
			page, err := s.registry.Search(gctx, req.DocumentType(), req.ForYear(year, today).Encode())
			if err != nil {
				return fmt.Errorf("search %s year %d: %w", req.DocumentType(), year, err)
			}
			buckets[i] = page.Results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domnorma.Page{}, err //nolint:wrapcheck // wrapped per bucket
	}

	var merged []domnorma.Record
	for _, b := range buckets {
		merged = append(merged, b...)
	}
	logger.FromContext(ctx).Debug("year buckets merged",
		zap.String("tipo", req.DocumentType()),
		zap.Ints("years", years),
		zap.Int("results", len(merged)),
	)

	limit := len(merged)
	if v, ok := req.Filters().Get(keyLimit); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return domnorma.NewPage(domnorma.ResultSet{Count: len(merged), Offset: 1, Limit: limit}, merged), nil
}

// Get looks a norm up by numeric id. Both text bodies come back with the
// registry placeholder rewritten to the gateway resource prefix.
func (s *Service) Get(ctx context.Context, id string, summaryOnly bool) (domnorma.Enriched, error) {
	id, err := validateID(id)
	if err != nil {
		return domnorma.Enriched{}, err
	}
	rec, err := s.registry.GetByID(ctx, id, summaryOnly)
	if err != nil {
		return domnorma.Enriched{}, fmt.Errorf("get norma %s: %w", id, err)
	}
	return s.rewriter.RewriteRecord(domnorma.EnrichRecord(s.policy, rec)), nil
}

// ByPublication returns the norms published under one publication id.
func (s *Service) ByPublication(ctx context.Context, publicationID string) (domnorma.EnrichedPage, error) {
	publicationID = strings.TrimSpace(publicationID)
	if publicationID == "" {
		return domnorma.EnrichedPage{}, fmt.Errorf("%w: publicación requerida", domain.ErrInvalidRequest)
	}
	page, err := s.registry.GetByPublication(ctx, publicationID)
	if err != nil {
		return domnorma.EnrichedPage{}, fmt.Errorf("publicacion %s: %w", publicationID, err)
	}
	return domnorma.EnrichPage(s.policy, page), nil
}

// Preview builds link-preview metadata from a summary lookup.
func (s *Service) Preview(ctx context.Context, id string) (domnorma.Preview, error) {
	id, err := validateID(id)
	if err != nil {
		return domnorma.Preview{}, err
	}
	rec, err := s.registry.GetByID(ctx, id, true)
	if err != nil {
		return domnorma.Preview{}, fmt.Errorf("preview norma %s: %w", id, err)
	}
	e := domnorma.EnrichRecord(s.policy, rec)

	p := domnorma.Preview{
		ID:          id,
		Title:       e.DisplayName,
		Summary:     s.plainText(rec.Attr(attrSummaryTitle)),
		Publicacion: rec.Publication,
	}
	if p.Title == "" {
		p.Title = "Norma"
	}
	if p.Summary == "" {
		p.Summary = s.plainText(rec.Attr(attrShortTitle))
	}
	if len(rec.Identifiers) > 0 {
		p.Dependencia = rec.Identifiers[0].Dependencia
	}
	if e.Bulletin != "" && e.BulletinPage != "" {
		p.Boletin = "B.O.R.A " + e.Bulletin + " • pág " + e.BulletinPage
	}
	return p, nil
}

// plainText strips markup and collapses whitespace.
func (s *Service) plainText(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.Join(strings.Fields(html.UnescapeString(s.strip.Sanitize(raw))), " ")
}

func validateID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: id requerido", domain.ErrInvalidRequest)
	}
	if n, err := strconv.ParseUint(id, 10, 64); err != nil || n == 0 {
		return "", fmt.Errorf("%w: id debe ser numérico", domain.ErrInvalidRequest)
	}
	return id, nil
}
