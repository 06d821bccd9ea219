// Package testutil holds deterministic stand-ins for the embedding model and
// the answer LLM.
package testutil

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/tmc/langchaingo/llms"
)

// Embedder hashes lower-cased words into a bag-of-words vector of Dim
// entries. Texts sharing words end up close under cosine similarity.
type Embedder struct {
	Dim int
	Err error

	mu           sync.Mutex
	QueryCalls   int
	DocumentSets int
}

func NewEmbedder(dim int) *Embedder {
	return &Embedder{Dim: dim}
}

func (e *Embedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.DocumentSets++
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.QueryCalls++
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	return e.vector(text), nil
}

func (e *Embedder) vector(text string) []float32 {
	v := make([]float32, e.Dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[int(h.Sum32())%e.Dim]++
	}
	// keep the vector non-zero so cosine similarity is defined
	v[0] += 0.01
	return v
}

// LLM answers every prompt with Reply and remembers the prompts it saw.
type LLM struct {
	Reply string
	Err   error

	mu      sync.Mutex
	Prompts []string
}

func (m *LLM) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	var prompt strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				prompt.WriteString(text.Text)
			}
		}
	}
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt.String())
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.Reply}},
	}, nil
}

func (m *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *LLM) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Prompts) == 0 {
		return ""
	}
	return m.Prompts[len(m.Prompts)-1]
}
