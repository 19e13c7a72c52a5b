package knowledge

// GlobalSummaryID is the sentinel ID of the whole-portfolio summary item.
// The summary is excluded from similarity ranking and injected into every
// chat prompt instead, as the authoritative source of truth.
const GlobalSummaryID = "global-summary"

// Item is one retrievable unit of knowledge as persisted in the vector
// store file. All items of one store generation share a single embedding
// dimensionality; a store built with one embedding model must not be
// queried with vectors from another.
type Item struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Embedding []float64         `json:"embedding"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Scored is an Item augmented with its cosine similarity against a query.
// It only exists within a single ranking call and is never persisted.
type Scored struct {
	Item
	Score float64
}
