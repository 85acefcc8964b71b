package request

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/kailas-cloud/normgate/internal/domain"
	"github.com/kailas-cloud/normgate/internal/domain/search/query"
)

// Filter keys with gateway meaning.
const (
	KeyType            = "tipo"
	KeyNumero          = "numero"
	KeyPublishedFrom   = "publicacion_desde"
	KeyPublishedTo     = "publicacion_hasta"
	KeySanctionYear    = "sancion"
	publicationDateFmt = "2006-01-02"
)

var numeroWithYear = regexp.MustCompile(`^\s*([^/]*?)\s*/\s*(\S*)\s*$`)

// Search is a validated search request: a document type plus the filters
// forwarded to the registry.
type Search struct {
	documentType string
	filters      query.Filters
	years        []int
}

// Parse builds a search from a JSON body of the form {"tipo": ..., ...filters}.
// now bounds the candidate years of a "numero/year" filter.
func Parse(body []byte, now time.Time) (Search, error) {
	filters, err := query.Parse(body)
	if err != nil {
		return Search{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err) //nolint:errorlint // one sentinel per error
	}
	documentType, _ := filters.Get(KeyType)
	filters.Delete(KeyType)
	return New(documentType, filters, now)
}

// New validates a search. A numero of the form "70/2023" or "70/23" is split
// into the bare number and the candidate publication years.
func New(documentType string, filters query.Filters, now time.Time) (Search, error) {
	if documentType == "" {
		return Search{}, fmt.Errorf("%w: tipo requerido", domain.ErrInvalidRequest)
	}

	filters = filters.Clone()
	var years []int
	if numero, ok := filters.Get(KeyNumero); ok {
		if m := numeroWithYear.FindStringSubmatch(numero); m != nil {
			filters.Set(KeyNumero, m[1])
			years = CandidateYears(m[2], now.Year())
		}
	}

	return Search{documentType: documentType, filters: filters, years: years}, nil
}

// CandidateYears expands a year suffix into the years it can denote, none
// after currentYear. Two digits map to 18xx, 19xx and 20xx; four digits to
// themselves; anything else to nothing.
func CandidateYears(suffix string, currentYear int) []int {
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return nil
		}
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return nil
	}
	var candidates []int
	switch len(suffix) {
	case 2:
		candidates = []int{1800 + n, 1900 + n, 2000 + n}
	case 4:
		candidates = []int{n}
	default:
		return nil
	}
	years := candidates[:0]
	for _, y := range candidates {
		if y <= currentYear {
			years = append(years, y)
		}
	}
	return years
}

// DocumentType returns the registry type path segment.
func (s Search) DocumentType() string { return s.documentType }

// Filters returns a copy of the filters sent upstream.
func (s Search) Filters() query.Filters { return s.filters.Clone() }

// Years returns the candidate publication years, empty when the search is not split.
func (s Search) Years() []int { return append([]int(nil), s.years...) }

// ForYear returns the filters restricted to publications of one year. The
// range ends today for the current year.
func (s Search) ForYear(year int, today time.Time) query.Filters {
	f := s.filters.Clone()
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	if year == today.Year() {
		to = today
	}
	f.Set(KeyPublishedFrom, from.Format(publicationDateFmt))
	f.Set(KeyPublishedTo, to.Format(publicationDateFmt))
	return f
}

// ForSanctionYear returns the filters restricted to norms sanctioned in year.
func (s Search) ForSanctionYear(year int) query.Filters {
	f := s.filters.Clone()
	f.Set(KeySanctionYear, strconv.Itoa(year))
	return f
}
