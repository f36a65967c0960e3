package llm_service

import "context"

type MockLLMService struct {
	GenerateFunc func(ctx context.Context, question, grounding string) (string, error)
	Calls        int
}

func (m *MockLLMService) Generate(ctx context.Context, question, grounding string) (string, error) {
	m.Calls++
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, question, grounding)
	}
	return "mock response", nil
}
