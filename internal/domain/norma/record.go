// Package norma models legal norms as served by the Infoleg registry and the
// pure transformations applied to them by the gateway.
package norma

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Wire attribute names used by the registry and by the enriched output.
const (
	AttrID           = "id"
	AttrType         = "tipoNorma"
	AttrIdentifiers  = "idNormas"
	AttrSanction     = "sancion"
	AttrPublication  = "publicacion"
	AttrText         = "textoNorma"
	AttrUpdatedText  = "textoNormaAct"
	AttrNumbered     = "esNumerada"
	AttrDisplayName  = "nombreNorma"
	AttrResults      = "results"
	AttrBulletin     = "nroBoletin"
	AttrBulletinPage = "pagBoletin"

	attrBulletinNumber     = "numeroBoletin"
	attrBulletinPageNumber = "numeroPagina"
)

// Identifier is one numbered-identifier entry (idNormas[]) of a norm.
// Numero is kept as text because the registry emits it both as a string and as a number.
type Identifier struct {
	Numero      string
	Dependencia string
	RamaDigesto string
}

// UnmarshalJSON accepts numero as string or number.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	var raw struct {
		Numero      json.RawMessage `json:"numero"`
		Dependencia json.RawMessage `json:"dependencia"`
		RamaDigesto json.RawMessage `json:"ramaDigesto"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err //nolint:wrapcheck // decoder error already names the offset
	}
	*id = Identifier{
		Numero:      scalar(raw.Numero),
		Dependencia: scalar(raw.Dependencia),
		RamaDigesto: scalar(raw.RamaDigesto),
	}
	return nil
}

// Record is a norm exactly as returned by the registry.
// The typed fields are a read view; every attribute is kept verbatim for output.
type Record struct {
	ID          string
	Type        string
	Identifiers []Identifier
	Sanction    string
	Publication string
	Text        string
	UpdatedText string

	attrs map[string]json.RawMessage
}

var errNullRecord = errors.New("norma: record is null")

// UnmarshalJSON decodes a registry record, keeping unknown attributes.
func (r *Record) UnmarshalJSON(data []byte) error {
	var attrs map[string]json.RawMessage
	if err := json.Unmarshal(data, &attrs); err != nil {
		return fmt.Errorf("norma: decode record: %w", err)
	}
	if attrs == nil {
		return errNullRecord
	}

	rec := Record{
		ID:          scalar(attrs[AttrID]),
		Type:        scalar(attrs[AttrType]),
		Sanction:    scalar(attrs[AttrSanction]),
		Publication: scalar(attrs[AttrPublication]),
		Text:        scalar(attrs[AttrText]),
		UpdatedText: scalar(attrs[AttrUpdatedText]),
		attrs:       attrs,
	}
	if raw, ok := attrs[AttrIdentifiers]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &rec.Identifiers); err != nil {
			return fmt.Errorf("norma: decode %s: %w", AttrIdentifiers, err)
		}
	}
	*r = rec
	return nil
}

// MarshalJSON writes the original attributes with the typed text fields applied.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.fields()) //nolint:wrapcheck // map of raw messages and strings
}

func (r Record) fields() map[string]any {
	out := make(map[string]any, len(r.attrs)+4)
	for k, v := range r.attrs {
		out[k] = v
	}
	if _, ok := r.attrs[AttrText]; ok || r.Text != "" {
		out[AttrText] = r.Text
	}
	if _, ok := r.attrs[AttrUpdatedText]; ok || r.UpdatedText != "" {
		out[AttrUpdatedText] = r.UpdatedText
	}
	return out
}

// Attr returns a scalar attribute as text ("" when absent, null or structured).
func (r Record) Attr(name string) string {
	return scalar(r.attrs[name])
}

// Numero returns the first identifier's number, falling back to the record id.
func (r Record) Numero() (string, bool) {
	if len(r.Identifiers) > 0 && r.Identifiers[0].Numero != "" {
		return r.Identifiers[0].Numero, true
	}
	if r.ID != "" {
		return r.ID, true
	}
	return "", false
}

// Year returns the calendar year of the sanction date, else of the publication date.
func (r Record) Year() (int, bool) {
	if y, ok := parseYear(r.Sanction); ok {
		return y, true
	}
	return parseYear(r.Publication)
}

var dateLayouts = []string{"2006-01-02", "02/01/2006"}

func parseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if len(s) > len("2006-01-02") && s[4] == '-' {
		s = s[:len("2006-01-02")] // drop time part
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Year(), true
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Year(), true
	}
	return 0, false
}

// scalar renders a JSON scalar as text: strings unquoted, numbers and booleans literal.
func scalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{', '[':
		return ""
	default:
		if raw[0] == 't' || raw[0] == 'f' {
			if b, err := strconv.ParseBool(string(raw)); err == nil {
				return strconv.FormatBool(b)
			}
			return ""
		}
		return string(raw)
	}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
