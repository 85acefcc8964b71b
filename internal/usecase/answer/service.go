package answer

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/normgate/internal/domain"
	domanswer "github.com/kailas-cloud/normgate/internal/domain/answer"
)

// Service answers questions, optionally grounded on one norm.
type Service struct {
	answerer Answerer
	normas   NormaReader
}

// New creates an answer service. A nil answerer disables it.
func New(answerer Answerer, normas NormaReader) *Service {
	return &Service{answerer: answerer, normas: normas}
}

// Enabled reports whether an answer provider is configured.
func (s *Service) Enabled() bool { return s.answerer != nil }

// Ask validates the question, attaches the norm metadata when normaID is
// set, and forwards it to the provider.
func (s *Service) Ask(ctx context.Context, text, normaID string) (domanswer.Answer, error) {
	if s.answerer == nil {
		return domanswer.Answer{}, fmt.Errorf("answers: %w", domain.ErrNotImplemented)
	}

	q, err := domanswer.NewQuestion(text, normaID)
	if err != nil {
		return domanswer.Answer{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err) //nolint:errorlint // one sentinel per error
	}

	if q.NormaID() != "" && s.normas != nil {
		p, err := s.normas.Preview(ctx, q.NormaID())
		if err != nil {
			return domanswer.Answer{}, fmt.Errorf("answer context: %w", err)
		}
		q = q.WithContext(passages(p.Title, p.Summary, p.Dependencia, p.Publicacion)...)
	}

	a, err := s.answerer.Answer(ctx, q)
	if err != nil {
		return domanswer.Answer{}, fmt.Errorf("answer: %w", err)
	}
	return a, nil
}

func passages(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
