package domain

// EmbeddingResult carries a computed vector plus provider token usage.
// Cache hits report zero tokens.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}
