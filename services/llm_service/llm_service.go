package llm_service

import "context"

// LLMService generates an answer to a question grounded on the supplied
// context. Implementations must answer only from that context; judging the
// answer's correctness is not their job.
type LLMService interface {
	Generate(ctx context.Context, question, grounding string) (string, error)
}
