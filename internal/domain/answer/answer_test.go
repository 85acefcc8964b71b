package answer

import (
	"strings"
	"testing"
)

func TestNewQuestion(t *testing.T) {
	q, err := NewQuestion("  ¿Qué establece la Ley 27541?  ", " 333 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Text() != "¿Qué establece la Ley 27541?" {
		t.Errorf("Text() = %q", q.Text())
	}
	if q.NormaID() != "333" {
		t.Errorf("NormaID() = %q", q.NormaID())
	}
}

func TestNewQuestion_Empty(t *testing.T) {
	if _, err := NewQuestion("   ", ""); err == nil {
		t.Fatal("expected error for blank question")
	}
}

func TestNewQuestion_TooLong(t *testing.T) {
	if _, err := NewQuestion(strings.Repeat("á", MaxQuestionLength+1), ""); err == nil {
		t.Fatal("expected error for long question")
	}
	if _, err := NewQuestion(strings.Repeat("á", MaxQuestionLength), ""); err != nil {
		t.Fatalf("question at max length rejected: %v", err)
	}
}

func TestWithContext_DoesNotAlias(t *testing.T) {
	q, _ := NewQuestion("q", "")
	a := q.WithContext("one")
	b := a.WithContext("two")

	if len(a.Context()) != 1 || len(b.Context()) != 2 {
		t.Errorf("context lengths %d/%d", len(a.Context()), len(b.Context()))
	}
	if len(q.Context()) != 0 {
		t.Error("original question modified")
	}
}
