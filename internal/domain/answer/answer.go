// Package answer holds the question/answer boundary types.
package answer

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxQuestionLength is the maximum question length in characters.
const MaxQuestionLength = 4000

// Question is a validated natural-language question, optionally grounded on
// the text of one or more norms.
type Question struct {
	text    string
	normaID string
	context []string
}

// NewQuestion validates a question. normaID may be empty.
func NewQuestion(text, normaID string) (Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Question{}, fmt.Errorf("question is required")
	}
	if utf8.RuneCountInString(text) > MaxQuestionLength {
		return Question{}, fmt.Errorf("question too long (max %d chars)", MaxQuestionLength)
	}
	return Question{text: text, normaID: strings.TrimSpace(normaID)}, nil
}

// WithContext returns a copy of q carrying grounding passages.
func (q Question) WithContext(passages ...string) Question {
	q.context = append(append([]string(nil), q.context...), passages...)
	return q
}

// Text returns the question text.
func (q Question) Text() string { return q.text }

// NormaID returns the norm the question refers to, if any.
func (q Question) NormaID() string { return q.normaID }

// Context returns the grounding passages.
func (q Question) Context() []string { return q.context }

// Answer is the provider's reply.
type Answer struct {
	Text  string
	Model string
}
