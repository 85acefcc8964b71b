package norma

import "encoding/json"

// Enriched is a Record with its derived display attributes.
type Enriched struct {
	Record

	Numbered     bool
	DisplayName  string
	Bulletin     string // Boletín Oficial issue number
	BulletinPage string
}

// MarshalJSON writes the record attributes plus esNumerada and nombreNorma.
// textoNorma is always present; nroBoletin and pagBoletin are filled from
// the numeric bulletin attributes when the record lacks them.
func (e Enriched) MarshalJSON() ([]byte, error) {
	out := e.fields()
	out[AttrText] = e.Text
	out[AttrNumbered] = e.Numbered
	out[AttrDisplayName] = e.DisplayName
	if _, ok := out[AttrBulletin]; !ok && e.Bulletin != "" {
		out[AttrBulletin] = e.Bulletin
	}
	if _, ok := out[AttrBulletinPage]; !ok && e.BulletinPage != "" {
		out[AttrBulletinPage] = e.BulletinPage
	}
	return json.Marshal(out) //nolint:wrapcheck // map of raw messages and scalars
}

// EnrichRecord derives the display attributes of one record. The input is not modified.
func EnrichRecord(policy *Policy, r Record) Enriched {
	name, numbered := policy.DisplayName(r)
	if r.Text == "" {
		r.Text = r.UpdatedText
	}
	return Enriched{
		Record:       r,
		Numbered:     numbered,
		DisplayName:  name,
		Bulletin:     firstNonEmpty(r.Attr(AttrBulletin), r.Attr(attrBulletinNumber)),
		BulletinPage: firstNonEmpty(r.Attr(AttrBulletinPage), r.Attr(attrBulletinPageNumber)),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Enrich enriches records in order. Output length always equals input length.
func Enrich(policy *Policy, records []Record) []Enriched {
	out := make([]Enriched, len(records))
	for i, r := range records {
		out[i] = EnrichRecord(policy, r)
	}
	return out
}
