package answerer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recipedex/internal/domain"
)

type mockGenerator struct {
	model    string
	text     string
	err      error
	system   string
	user     string
	thinking domain.ThinkingLevel
	deadline bool
}

func (m *mockGenerator) Generate(
	ctx context.Context, system, user string, thinking domain.ThinkingLevel,
) (string, error) {
	m.system = system
	m.user = user
	m.thinking = thinking
	_, m.deadline = ctx.Deadline()
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func (m *mockGenerator) Model() string { return m.model }

func TestAnswer_ForwardsPromptAndThinking(t *testing.T) {
	gen := &mockGenerator{model: "gpt-test", text: "Use strong flour."}
	svc := New(gen, 0, 0, zap.NewNop())

	docs := []domain.Hit{{ID: "r1", Text: "Strong flour gives structure."}}
	ans, err := svc.Answer(context.Background(), "Which flour?", docs, domain.ThinkingLow)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if ans.Text != "Use strong flour." {
		t.Errorf("text = %q", ans.Text)
	}
	if ans.Model != "gpt-test" {
		t.Errorf("model = %q", ans.Model)
	}
	if ans.Thinking != domain.ThinkingLow {
		t.Errorf("thinking = %q", ans.Thinking)
	}
	if gen.thinking != domain.ThinkingLow {
		t.Errorf("generator saw thinking %q", gen.thinking)
	}
	if gen.system != systemPrompt {
		t.Errorf("system prompt not forwarded: %q", gen.system)
	}
	if !strings.Contains(gen.user, "(id: r1)") || !strings.Contains(gen.user, "Which flour?") {
		t.Errorf("user prompt incomplete:\n%s", gen.user)
	}
}

func TestAnswer_WrapsGeneratorError(t *testing.T) {
	gen := &mockGenerator{model: "gpt-test", err: domain.ErrGenerationProvider}
	svc := New(gen, 0, 0, zap.NewNop())

	_, err := svc.Answer(context.Background(), "q?", nil, domain.ThinkingDefault)
	if !errors.Is(err, domain.ErrGenerationProvider) {
		t.Fatalf("expected ErrGenerationProvider, got %v", err)
	}
	if !strings.Contains(err.Error(), "generate answer") {
		t.Errorf("error lacks operation context: %v", err)
	}
}

func TestAnswer_TimeoutBoundsGeneration(t *testing.T) {
	gen := &mockGenerator{model: "gpt-test", text: "ok"}

	svc := New(gen, 0, 30*time.Second, zap.NewNop())
	if _, err := svc.Answer(context.Background(), "q?", nil, domain.ThinkingDefault); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !gen.deadline {
		t.Error("generation context has no deadline despite a configured timeout")
	}

	svc = New(gen, 0, 0, zap.NewNop())
	if _, err := svc.Answer(context.Background(), "q?", nil, domain.ThinkingDefault); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if gen.deadline {
		t.Error("zero timeout must not impose a deadline")
	}
}
