// Package resource classifies payloads fetched from the registry resource tree.
package resource

import (
	"bytes"
	"encoding/json"
	"mime"
	"strings"
)

// Kind tells how a fetched resource is re-served.
type Kind int

// Resource kinds.
const (
	// KindStream is forwarded byte for byte.
	KindStream Kind = iota
	// KindHTML is an HTML document unwrapped from a JSON envelope.
	KindHTML
)

// String returns the metric label of the kind.
func (k Kind) String() string {
	if k == KindHTML {
		return "html"
	}
	return "stream"
}

// Envelope is the JSON wrapper the registry uses for some HTML documents.
type Envelope struct {
	ContentType string          `json:"content-type"`
	Data        json.RawMessage `json:"data"`
}

// Classified is the outcome of classifying a fetched payload.
type Classified struct {
	Kind Kind
	HTML string // set for KindHTML only
}

// IsEnvelopeCandidate reports whether an upstream response may carry an
// envelope: a successful status with a JSON content type.
func IsEnvelopeCandidate(status int, contentType string) bool {
	if status < 200 || status > 299 {
		return false
	}
	return hasMediaPrefix(contentType, "application/json")
}

// Classify inspects a buffered JSON body. Anything other than an envelope
// with an HTML content type and a string data field is KindStream.
func Classify(body []byte) Classified {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return Classified{Kind: KindStream}
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Classified{Kind: KindStream}
	}
	if !isMediaType(env.ContentType, "text/html") {
		return Classified{Kind: KindStream}
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || data[0] != '"' {
		return Classified{Kind: KindStream}
	}
	var html string
	if err := json.Unmarshal(data, &html); err != nil {
		return Classified{Kind: KindStream}
	}
	return Classified{Kind: KindHTML, HTML: html}
}

// isMediaType reports whether contentType names exactly mediaType; parameters
// such as charset are ignored.
func isMediaType(contentType, mediaType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == mediaType
}

func hasMediaPrefix(contentType, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), prefix)
}
