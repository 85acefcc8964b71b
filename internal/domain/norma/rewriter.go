package norma

import (
	"errors"
	"fmt"
	"strings"
)

// Rewriter replaces the registry placeholder token with the gateway resource prefix.
type Rewriter struct {
	placeholder string
	prefix      string
}

// NewRewriter builds a rewriter. The prefix must not contain the placeholder,
// sit inside it, or share an edge with it: otherwise a replacement could join
// with the surrounding text into a fresh placeholder and a second pass would
// change the output again.
func NewRewriter(placeholder, prefix string) (*Rewriter, error) {
	if placeholder == "" {
		return nil, errors.New("norma: empty placeholder")
	}
	if prefix == "" {
		return nil, errors.New("norma: empty prefix")
	}
	if strings.Contains(prefix, placeholder) {
		return nil, fmt.Errorf("norma: prefix %q contains placeholder %q", prefix, placeholder)
	}
	if strings.Contains(placeholder, prefix) || edgesOverlap(placeholder, prefix) {
		return nil, fmt.Errorf("norma: prefix %q overlaps placeholder %q", prefix, placeholder)
	}
	return &Rewriter{placeholder: placeholder, prefix: prefix}, nil
}

// edgesOverlap reports whether the end of one string is a proper start of the
// other, in either direction.
func edgesOverlap(placeholder, prefix string) bool {
	for k := 1; k < len(placeholder) && k <= len(prefix); k++ {
		if placeholder[len(placeholder)-k:] == prefix[:k] {
			return true
		}
		if placeholder[:k] == prefix[len(prefix)-k:] {
			return true
		}
	}
	return false
}

// Rewrite replaces every occurrence of the placeholder in s.
func (rw *Rewriter) Rewrite(s string) string {
	if s == "" {
		return s
	}
	return strings.ReplaceAll(s, rw.placeholder, rw.prefix)
}

// RewriteRecord rewrites both text bodies of an enriched record.
func (rw *Rewriter) RewriteRecord(e Enriched) Enriched {
	e.Text = rw.Rewrite(e.Text)
	e.UpdatedText = rw.Rewrite(e.UpdatedText)
	return e
}

// Prefix returns the gateway resource prefix.
func (rw *Rewriter) Prefix() string {
	return rw.prefix
}
