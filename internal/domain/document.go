package domain

// Document is one indexed record: a stable id, its text, and the
// embedding computed from that text at ingestion time.
// Documents are immutable once the store is built.
type Document struct {
	ID        string
	Text      string
	Embedding []float32
}

// Hit is one retrieval result: a document position plus its relevance score.
type Hit struct {
	ID    string
	Text  string
	Score float64
}
