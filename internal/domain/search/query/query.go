// Package query builds the query string sent to the registry from the
// filters of a search request.
package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Field is one search filter. Null fields are kept so that key order
// survives, but they are never encoded.
type Field struct {
	Key   string
	Value string
	Null  bool
}

// Filters is an ordered set of search filters, unique by key.
type Filters struct {
	fields []Field
}

// Set adds a field, or replaces the value of an existing one in place.
func (f *Filters) Set(key, value string) {
	f.put(Field{Key: key, Value: value})
}

// SetNull records a key whose value is null.
func (f *Filters) SetNull(key string) {
	f.put(Field{Key: key, Null: true})
}

func (f *Filters) put(fld Field) {
	for i := range f.fields {
		if f.fields[i].Key == fld.Key {
			f.fields[i] = fld
			return
		}
	}
	f.fields = append(f.fields, fld)
}

// Get returns the value of key and whether it is present and non-null.
func (f Filters) Get(key string) (string, bool) {
	for _, fld := range f.fields {
		if fld.Key == key {
			return fld.Value, !fld.Null
		}
	}
	return "", false
}

// Delete removes key.
func (f *Filters) Delete(key string) {
	for i := range f.fields {
		if f.fields[i].Key == key {
			f.fields = append(f.fields[:i], f.fields[i+1:]...)
			return
		}
	}
}

// Fields returns a copy of the fields in insertion order.
func (f Filters) Fields() []Field {
	return append([]Field(nil), f.fields...)
}

// Len returns the number of fields, null ones included.
func (f Filters) Len() int { return len(f.fields) }

// Clone returns an independent copy.
func (f Filters) Clone() Filters {
	return Filters{fields: f.Fields()}
}

// Encode renders the filters as a query string. Null and empty values are
// skipped; keys and values are percent-encoded with spaces as %20.
func (f Filters) Encode() string {
	var b strings.Builder
	for _, fld := range f.fields {
		if fld.Null || fld.Value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escape(fld.Key))
		b.WriteByte('=')
		b.WriteString(escape(fld.Value))
	}
	return b.String()
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// ErrInvalid is returned for bodies that cannot be turned into filters.
var ErrInvalid = errors.New("invalid search filters")

// Parse reads a JSON object into filters, keeping the key order of the
// document. Scalars and arrays of scalars are accepted; nested objects are not.
func Parse(data []byte) (Filters, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Filters{}, fmt.Errorf("%w: %v", ErrInvalid, err) //nolint:errorlint // decoder detail only
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Filters{}, fmt.Errorf("%w: body must be a JSON object", ErrInvalid)
	}

	var f Filters
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Filters{}, fmt.Errorf("%w: %v", ErrInvalid, err) //nolint:errorlint // decoder detail only
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Filters{}, fmt.Errorf("%w: field %q: %v", ErrInvalid, key, err) //nolint:errorlint // decoder detail only
		}
		value, null, err := render(raw)
		if err != nil {
			return Filters{}, fmt.Errorf("%w: field %q: %v", ErrInvalid, key, err) //nolint:errorlint // render detail only
		}
		if null {
			f.SetNull(key)
		} else {
			f.Set(key, value)
		}
	}
	if _, err := dec.Token(); err != nil {
		return Filters{}, fmt.Errorf("%w: %v", ErrInvalid, err) //nolint:errorlint // decoder detail only
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Filters{}, fmt.Errorf("%w: trailing data after object", ErrInvalid)
	}
	return f, nil
}

// render turns a JSON value into its query text. Arrays are joined with ","
// and null elements render empty.
func render(raw json.RawMessage) (string, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", true, nil
	}
	switch raw[0] {
	case 'n':
		return "", true, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false, err //nolint:wrapcheck // wrapped by caller
		}
		return s, false, nil
	case '{':
		return "", false, errors.New("nested objects are not supported")
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return "", false, err //nolint:wrapcheck // wrapped by caller
		}
		parts := make([]string, len(items))
		for i, item := range items {
			s, _, err := render(item)
			if err != nil {
				return "", false, err
			}
			parts[i] = s
		}
		return strings.Join(parts, ","), false, nil
	default:
		// numbers and booleans keep their literal form
		return string(raw), false, nil
	}
}
