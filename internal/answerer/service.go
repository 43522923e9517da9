// Package answerer turns a question plus retrieved documents into a grounded
// prompt and obtains a generated answer from the LLM provider.
package answerer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recipedex/internal/domain"
)

// Generator is the consumer interface for the generation provider.
type Generator interface {
	Generate(ctx context.Context, system, user string, thinking domain.ThinkingLevel) (string, error)
	Model() string
}

// Answer is a generated answer plus the settings that produced it.
type Answer struct {
	Text     string
	Thinking domain.ThinkingLevel
	Model    string
}

// Service builds grounded prompts and orchestrates generation.
type Service struct {
	gen Generator
	// contextWindow is the model token budget for the whole prompt.
	// 0 means unlimited.
	contextWindow int
	timeout       time.Duration
	logger        *zap.Logger
}

// New creates an answerer. timeout bounds each generation call.
func New(gen Generator, contextWindow int, timeout time.Duration, logger *zap.Logger) *Service {
	return &Service{gen: gen, contextWindow: contextWindow, timeout: timeout, logger: logger}
}

// Model returns the generation model identifier.
func (s *Service) Model() string { return s.gen.Model() }

// Answer generates an answer grounded in the retrieved documents, best-ranked
// first. Provider failures and timeouts surface as domain.ErrGenerationProvider.
// Retries are the provider client's business: a retry here would risk a
// duplicate billed generation.
func (s *Service) Answer(
	ctx context.Context, question string, docs []domain.Hit, thinking domain.ThinkingLevel,
) (Answer, error) {
	user, kept := buildPrompt(question, docs, s.contextWindow)

	s.logger.Debug("generation prompt built",
		zap.Int("documents_retrieved", len(docs)),
		zap.Int("documents_kept", kept),
		zap.Int("prompt_chars", len(user)),
		zap.String("thinking", string(thinking)),
	)

	genCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.gen.Generate(genCtx, systemPrompt, user, thinking)
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	return Answer{Text: text, Thinking: thinking, Model: s.gen.Model()}, nil
}
