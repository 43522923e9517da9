package answerer

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/recipedex/internal/domain"
)

func hit(id, text string) domain.Hit {
	return domain.Hit{ID: id, Text: text}
}

func TestBuildPrompt_NumbersDocsInRankOrder(t *testing.T) {
	docs := []domain.Hit{
		hit("r2", "Knead the dough for ten minutes."),
		hit("r7", "Proof the yeast in warm water."),
	}

	prompt, kept := buildPrompt("How do I make bread?", docs, 0)
	if kept != 2 {
		t.Fatalf("kept = %d, want 2", kept)
	}

	i1 := strings.Index(prompt, "[1] (id: r2)")
	i2 := strings.Index(prompt, "[2] (id: r7)")
	if i1 < 0 || i2 < 0 || i1 > i2 {
		t.Errorf("blocks out of order or missing:\n%s", prompt)
	}
	if !strings.HasSuffix(prompt, "Question: How do I make bread?") {
		t.Errorf("prompt must end with the question:\n%s", prompt)
	}
}

func TestBuildPrompt_NoContext(t *testing.T) {
	prompt, kept := buildPrompt("anything?", nil, 0)
	if kept != 0 {
		t.Fatalf("kept = %d, want 0", kept)
	}
	if !strings.Contains(prompt, "(no context available)") {
		t.Errorf("missing placeholder:\n%s", prompt)
	}
}

func TestBuildPrompt_DropsLowestRankedFirst(t *testing.T) {
	long := strings.Repeat("flour water salt yeast ", 50)
	docs := []domain.Hit{hit("top", long), hit("second", long), hit("third", long)}

	// Budget fits roughly one document.
	window := (len(systemPrompt) + 256 + len(long) + 200) / tokenChars

	prompt, kept := buildPrompt("q?", docs, window)
	if kept != 1 {
		t.Fatalf("kept = %d, want 1", kept)
	}
	if !strings.Contains(prompt, "(id: top)") {
		t.Error("top-ranked document was dropped")
	}
	if strings.Contains(prompt, "(id: second)") || strings.Contains(prompt, "(id: third)") {
		t.Error("lower-ranked documents survived the budget")
	}
	if strings.Contains(prompt, truncationMarker) {
		t.Error("whole-document drops must not add the truncation marker")
	}
}

func TestBuildPrompt_TruncatesOversizedTopDoc(t *testing.T) {
	huge := strings.Repeat("simmer gently ", 500)
	docs := []domain.Hit{hit("only", huge)}

	window := (len(systemPrompt) + 256 + 400) / tokenChars

	prompt, kept := buildPrompt("q?", docs, window)
	if kept != 1 {
		t.Fatalf("kept = %d, want 1", kept)
	}
	if !strings.Contains(prompt, truncationMarker) {
		t.Errorf("missing truncation marker:\n%s", prompt)
	}
	if strings.Contains(prompt, huge) {
		t.Error("oversized document was not cut")
	}
}

func TestBuildPrompt_TinyWindowKeepsNothing(t *testing.T) {
	// A window too small for even the reserved overhead must still bound the
	// prompt: no document sneaks in whole.
	long := strings.Repeat("braise slowly ", 250)
	docs := []domain.Hit{hit("a", long), hit("b", long)}

	prompt, kept := buildPrompt("What cut of beef braises best?", docs, 50)
	if kept != 0 {
		t.Fatalf("kept = %d, want 0", kept)
	}
	if !strings.Contains(prompt, "(no context available)") {
		t.Errorf("missing placeholder:\n%s", prompt)
	}
	if strings.Contains(prompt, "(id: a)") || strings.Contains(prompt, "(id: b)") {
		t.Error("documents survived a window smaller than the reserved overhead")
	}
	if len(prompt) > 50*tokenChars+len("(no context available)")+256 {
		t.Errorf("prompt length %d is not bounded by the window", len(prompt))
	}
}

func TestBuildPrompt_UnlimitedWindowKeepsEverything(t *testing.T) {
	long := strings.Repeat("stock reduction ", 1000)
	docs := []domain.Hit{hit("a", long), hit("b", long), hit("c", long)}

	_, kept := buildPrompt("q?", docs, 0)
	if kept != 3 {
		t.Fatalf("kept = %d, want 3", kept)
	}
}
