package answer

import (
	"context"

	domanswer "github.com/kailas-cloud/normgate/internal/domain/answer"
	domnorma "github.com/kailas-cloud/normgate/internal/domain/norma"
)

// Answerer turns a question into an answer text.
type Answerer interface {
	Answer(ctx context.Context, q domanswer.Question) (domanswer.Answer, error)
}

// NormaReader provides the grounding metadata of a norm.
type NormaReader interface {
	Preview(ctx context.Context, id string) (domnorma.Preview, error)
}
