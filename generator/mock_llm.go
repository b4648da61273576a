package generator

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockLLM is a scripted Provider for offline dry runs and tests. Each Attempt
// consumes the next reply; once the script is exhausted the last reply repeats.
type MockLLM struct {
	Label   string
	Replies []MockReply

	mu      sync.Mutex
	prompts []Prompt
}

// MockReply is one scripted answer: Err wins over Text.
type MockReply struct {
	Text string
	Err  error
}

func (m *MockLLM) Name() string {
	if m.Label == "" {
		return "mock"
	}
	return m.Label
}

func (m *MockLLM) Attempt(ctx context.Context, prompt Prompt) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	n := len(m.prompts)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(m.Replies) == 0 {
		return SampleNewsletter(prompt), nil
	}
	idx := n - 1
	if idx >= len(m.Replies) {
		idx = len(m.Replies) - 1
	}
	r := m.Replies[idx]
	if r.Err != nil {
		return "", r.Err
	}
	return r.Text, nil
}

// Calls returns how many attempts reached this provider.
func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of every prompt received, in order.
func (m *MockLLM) Prompts() []Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Prompt(nil), m.prompts...)
}

// SampleNewsletter produces a well-formed newsletter without calling a model.
func SampleNewsletter(prompt Prompt) string {
	var sb strings.Builder
	sources := strings.Count(prompt.User, "Source: ")
	for i := 1; i <= 3; i++ {
		sb.WriteString(fmt.Sprintf("**Sample story %d from %d sources**\n\n", i, sources))
		sb.WriteString("This is placeholder narrative generated locally, without a model call.\n\n")
		sb.WriteString("Strategic insight: Dry runs exercise parsing, rendering and delivery end to end.\n\n")
		sb.WriteString("Your move: Configure GEMINI_API_KEY or OPENAI_API_KEY for real content.\n\n")
	}
	sb.WriteString("**Key takeaways:** The pipeline is wired; swap in a provider to get real analysis.\n")
	return sb.String()
}
