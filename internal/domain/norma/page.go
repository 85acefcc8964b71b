package norma

import (
	"encoding/json"
	"fmt"
)

// ResultSet is the paging block of a registry search response.
type ResultSet struct {
	Count  int `json:"count"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Page is a registry search response. Top-level attributes other than
// results are preserved verbatim.
type Page struct {
	ResultSet ResultSet
	Results   []Record

	attrs map[string]json.RawMessage
}

// UnmarshalJSON decodes a search response. A missing results key yields an empty page.
func (p *Page) UnmarshalJSON(data []byte) error {
	var attrs map[string]json.RawMessage
	if err := json.Unmarshal(data, &attrs); err != nil {
		return fmt.Errorf("norma: decode page: %w", err)
	}
	if attrs == nil {
		attrs = map[string]json.RawMessage{}
	}

	page := Page{attrs: attrs}
	if raw, ok := attrs[AttrResults]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &page.Results); err != nil {
			return fmt.Errorf("norma: decode %s: %w", AttrResults, err)
		}
	}
	if raw, ok := attrs["metadata"]; ok && !isNull(raw) {
		var meta struct {
			ResultSet ResultSet `json:"resultset"`
		}
		// Paging is informational only; an odd shape must not fail the page.
		if json.Unmarshal(raw, &meta) == nil {
			page.ResultSet = meta.ResultSet
		}
	}
	*p = page
	return nil
}

// Has reports whether the page has a top-level attribute with that name.
func (p Page) Has(name string) bool {
	_, ok := p.attrs[name]
	return ok
}

// EnrichedPage is a Page whose results went through the enricher.
type EnrichedPage struct {
	ResultSet ResultSet
	Results   []Enriched

	attrs map[string]json.RawMessage
}

// EnrichPage enriches every result of p, keeping the other attributes.
func EnrichPage(policy *Policy, p Page) EnrichedPage {
	return EnrichedPage{
		ResultSet: p.ResultSet,
		Results:   Enrich(policy, p.Results),
		attrs:     p.attrs,
	}
}

// MarshalJSON writes the preserved attributes with the enriched results.
func (p EnrichedPage) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.attrs)+1)
	for k, v := range p.attrs {
		out[k] = v
	}
	results := p.Results
	if results == nil {
		results = []Enriched{}
	}
	out[AttrResults] = results
	return json.Marshal(out) //nolint:wrapcheck // map of raw messages and records
}

// NewPage builds a page from already decoded results, such as a merge of
// several registry responses. The paging block is written as metadata.resultset.
func NewPage(rs ResultSet, results []Record) Page {
	meta, _ := json.Marshal(struct { //nolint:errchkjson // plain ints
		ResultSet ResultSet `json:"resultset"`
	}{rs})
	return Page{
		ResultSet: rs,
		Results:   results,
		attrs:     map[string]json.RawMessage{"metadata": meta},
	}
}
