// Package answer is the boundary to the external answer generator. It
// synthesizes nothing itself; it hands the already access-filtered
// context to an LLM provider and returns its answer. The guarantee that
// the context satisfies the requesting principal's access policy is the
// caller's (retrieval's), not this package's.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ziadkadry99/classrag/internal/llm"
)

// ErrGeneration marks answer-generation failures (LLM timeout, backend
// down), so callers can distinguish infrastructure failure from the
// "no relevant content" empty-context case.
var ErrGeneration = errors.New("answer generation failed")

// Source is one piece of context handed to the generator, with the
// citation fields returned to the client.
type Source struct {
	Text        string
	Filename    string
	AccessLevel string
	Partition   string
}

const systemPrompt = `You are a helpful AI assistant that answers questions based on provided context.

INSTRUCTIONS:
1. Read the context carefully
2. Answer based ONLY on the context
3. DO NOT quote directly - synthesize the information
4. Use clear, professional language
5. Format with paragraphs and bullet points
6. If context is insufficient, say so`

// Assembler produces answers from retrieved context via an LLM provider.
type Assembler struct {
	provider    llm.Provider
	model       string
	temperature float64
}

// NewAssembler creates an Assembler using the given provider and model.
func NewAssembler(provider llm.Provider, model string) *Assembler {
	return &Assembler{
		provider:    provider,
		model:       model,
		temperature: 0.7,
	}
}

// Answer generates an answer to the question grounded in the given
// sources. Callers must not invoke it with an empty source list; the
// empty case is a defined terminal state upstream, not a generation task.
func (a *Assembler) Answer(ctx context.Context, question string, sources []Source) (string, error) {
	if len(sources) == 0 {
		return "", fmt.Errorf("%w: no context supplied", ErrGeneration)
	}

	var sb strings.Builder
	for i, src := range sources {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Document: %s]\n%s", src.Filename, src.Text)
	}

	prompt := fmt.Sprintf("CONTEXT:\n%s\n\nQUESTION: %s\n\nANSWER:", sb.String(), question)

	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Model: a.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: a.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%w: provider returned empty answer", ErrGeneration)
	}

	return resp.Content, nil
}
