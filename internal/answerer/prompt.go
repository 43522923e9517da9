package answerer

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/recipedex/internal/domain"
)

const systemPrompt = "You are a helpful assistant. Answer the question using only the " +
	"provided context documents. If the context does not contain the answer, say so " +
	"instead of guessing."

// truncationMarker is appended whenever a document had to be cut mid-text.
const truncationMarker = "[TRUNCATED]"

// tokenChars approximates one model token as four characters of text.
const tokenChars = 4

// buildPrompt assembles the user message: numbered context blocks in rank
// order followed by the question. When contextWindow (tokens) is positive the
// prompt is kept within that budget by dropping the lowest-ranked documents
// first; if even the top document overflows, its text is cut and marked.
// Returns the prompt and how many documents made it in.
func buildPrompt(question string, docs []domain.Hit, contextWindow int) (string, int) {
	var b strings.Builder
	b.WriteString("Context documents:\n\n")

	limited := contextWindow > 0
	budget := 0
	if limited {
		// Reserve room for the system prompt, framing, and the question itself.
		// The reservation may exhaust a tiny window; the budget then goes
		// negative and no document fits, which is still a bounded prompt.
		budget = contextWindow*tokenChars - len(systemPrompt) - len(question) - 256
	}

	kept := 0
	for i, d := range docs {
		block := fmt.Sprintf("[%d] (id: %s)\n%s\n\n", i+1, d.ID, d.Text)

		if limited && b.Len()+len(block) > budget {
			if kept > 0 {
				// Lower-ranked documents are dropped whole.
				break
			}
			// Even the best document does not fit: keep a prefix, but never
			// cut silently.
			avail := budget - b.Len() - len(truncationMarker) - 2
			if avail > 0 {
				head := block[:min(avail, len(block))]
				b.WriteString(head)
				b.WriteString("\n" + truncationMarker + "\n\n")
				kept++
			}
			break
		}

		b.WriteString(block)
		kept++
	}

	if kept == 0 {
		b.WriteString("(no context available)\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(question)

	return b.String(), kept
}
