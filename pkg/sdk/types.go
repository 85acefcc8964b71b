package normgate

import (
	"encoding/json"
	"fmt"

	domnorma "github.com/kailas-cloud/normgate/internal/domain/norma"
)

// Filter is one search filter sent to the registry, e.g. F("numero", "27430").
type Filter struct {
	Key   string
	Value string
}

// F is shorthand for a Filter.
func F(key, value string) Filter {
	return Filter{Key: key, Value: value}
}

// Norma is an enriched legal norm.
type Norma struct {
	ID           string
	Type         string
	DisplayName  string // e.g. "Ley 27430"
	Numbered     bool
	Sanction     string
	Publication  string
	Text         string // links already rewritten
	UpdatedText  string
	Bulletin     string
	BulletinPage string

	// Raw is the full enriched record with every registry attribute.
	Raw json.RawMessage
}

// SearchResult is one page of norms.
type SearchResult struct {
	Count  int
	Offset int
	Limit  int
	Normas []Norma
}

// Preview is the metadata shown when a norm link is shared.
type Preview struct {
	ID          string
	Title       string
	Summary     string
	Dependencia string
	Publication string
	Bulletin    string
}

func toNorma(e domnorma.Enriched) (Norma, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return Norma{}, fmt.Errorf("normgate: encode norma %s: %w", e.ID, err)
	}
	return Norma{
		ID:           e.ID,
		Type:         e.Type,
		DisplayName:  e.DisplayName,
		Numbered:     e.Numbered,
		Sanction:     e.Sanction,
		Publication:  e.Publication,
		Text:         e.Text,
		UpdatedText:  e.UpdatedText,
		Bulletin:     e.Bulletin,
		BulletinPage: e.BulletinPage,
		Raw:          raw,
	}, nil
}

func toSearchResult(p domnorma.EnrichedPage) (*SearchResult, error) {
	res := &SearchResult{
		Count:  p.ResultSet.Count,
		Offset: p.ResultSet.Offset,
		Limit:  p.ResultSet.Limit,
		Normas: make([]Norma, 0, len(p.Results)),
	}
	for _, e := range p.Results {
		n, err := toNorma(e)
		if err != nil {
			return nil, err
		}
		res.Normas = append(res.Normas, n)
	}
	return res, nil
}

func toPreview(p domnorma.Preview) *Preview {
	return &Preview{
		ID:          p.ID,
		Title:       p.Title,
		Summary:     p.Summary,
		Dependencia: p.Dependencia,
		Publication: p.Publicacion,
		Bulletin:    p.Boletin,
	}
}
