package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/normgate/internal/domain"
	domanswer "github.com/kailas-cloud/normgate/internal/domain/answer"
	domnorma "github.com/kailas-cloud/normgate/internal/domain/norma"
)

type mockAnswerer struct {
	last  domanswer.Question
	calls int
	err   error
}

func (m *mockAnswerer) Answer(_ context.Context, q domanswer.Question) (domanswer.Answer, error) {
	m.calls++
	m.last = q
	if m.err != nil {
		return domanswer.Answer{}, m.err
	}
	return domanswer.Answer{Text: "respuesta", Model: "test-model"}, nil
}

type mockNormas struct {
	preview domnorma.Preview
	err     error
	lastID  string
}

func (m *mockNormas) Preview(_ context.Context, id string) (domnorma.Preview, error) {
	m.lastID = id
	return m.preview, m.err
}

func TestAsk_Disabled(t *testing.T) {
	svc := New(nil, nil)
	if svc.Enabled() {
		t.Error("expected service to be disabled")
	}
	if _, err := svc.Ask(context.Background(), "¿qué dice?", ""); !errors.Is(err, domain.ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}

func TestAsk_WithoutNorma(t *testing.T) {
	a := &mockAnswerer{}
	n := &mockNormas{}
	svc := New(a, n)

	got, err := svc.Ask(context.Background(), "  ¿Qué es un DNU?  ", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "respuesta" || got.Model != "test-model" {
		t.Errorf("unexpected answer %+v", got)
	}
	if a.last.Text() != "¿Qué es un DNU?" {
		t.Errorf("expected trimmed question, got %q", a.last.Text())
	}
	if len(a.last.Context()) != 0 {
		t.Errorf("expected no context, got %v", a.last.Context())
	}
	if n.lastID != "" {
		t.Error("norma lookup must be skipped without an id")
	}
}

func TestAsk_GroundedOnNorma(t *testing.T) {
	a := &mockAnswerer{}
	n := &mockNormas{preview: domnorma.Preview{
		ID:          "7",
		Title:       "Decreto 70/2023",
		Summary:     "Bases para la reconstrucción de la economía argentina",
		Publicacion: "2023-12-21",
	}}
	svc := New(a, n)

	if _, err := svc.Ask(context.Background(), "¿Qué deroga?", "7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.lastID != "7" {
		t.Errorf("expected lookup of norma 7, got %q", n.lastID)
	}
	want := []string{"Decreto 70/2023", "Bases para la reconstrucción de la economía argentina", "2023-12-21"}
	got := a.last.Context()
	if len(got) != len(want) {
		t.Fatalf("expected %d passages, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("passage %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAsk_NormaLookupFails(t *testing.T) {
	a := &mockAnswerer{}
	svc := New(a, &mockNormas{err: domain.ErrNotFound})

	if _, err := svc.Ask(context.Background(), "¿Qué deroga?", "7"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if a.calls != 0 {
		t.Error("provider must not be called when the norma lookup fails")
	}
}

func TestAsk_InvalidQuestion(t *testing.T) {
	a := &mockAnswerer{}
	svc := New(a, nil)

	if _, err := svc.Ask(context.Background(), "   ", ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if a.calls != 0 {
		t.Error("provider must not be called for invalid questions")
	}
}

func TestAsk_ProviderError(t *testing.T) {
	svc := New(&mockAnswerer{err: domain.ErrAnswerProviderError}, nil)

	if _, err := svc.Ask(context.Background(), "hola", ""); !errors.Is(err, domain.ErrAnswerProviderError) {
		t.Fatalf("expected ErrAnswerProviderError, got %v", err)
	}
}
