package knowledge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"sync"
)

// Store loads the persisted vector store and caches it in memory for the
// process lifetime. Rebuilds happen offline; a running server picks up a
// new store only on restart.
//
// Store is safe for concurrent use.
type Store struct {
	path   string
	logger *slog.Logger

	once  sync.Once
	items []Item
	err   error
}

// NewStore creates a Store reading from path. Nothing is loaded until the
// first call to Load.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Load returns every item of the store. The file is read and parsed once;
// later calls return the cached slice. A missing file is not an error: it
// yields an empty store, and callers degrade to a maintenance reply.
// Callers must not mutate the returned slice.
func (s *Store) Load() ([]Item, error) {
	s.once.Do(func() {
		data, err := os.ReadFile(s.path)
		if err != nil {
			if os.IsNotExist(err) {
				s.logger.Warn("vector store file not found, knowledge base unavailable", "path", s.path)
				return
			}
			s.err = fmt.Errorf("reading vector store: %w", err)
			return
		}

		if err := json.Unmarshal(data, &s.items); err != nil {
			s.err = fmt.Errorf("parsing vector store: %w", err)
			return
		}
		s.logger.Info("vector store loaded", "path", s.path, "items", len(s.items))
	})
	return s.items, s.err
}

// GlobalSummaryContent returns the content of the global-summary item, or
// the empty string when the store has none.
func GlobalSummaryContent(items []Item) string {
	for _, it := range items {
		if it.ID == GlobalSummaryID {
			return it.Content
		}
	}
	return ""
}

// Cosine returns the cosine similarity of two equal-length vectors.
// Mismatched lengths or a zero-magnitude vector yield 0 rather than NaN,
// so a degenerate embedding is excluded instead of poisoning the ranking.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Retrieve scores every non-summary item against the query embedding and
// returns the top k whose similarity reaches minScore, best first. Ties
// keep store order (stable sort).
//
// The threshold applies after truncation to k: a lower-ranked item above
// the threshold is never promoted into the window. Fewer than k results,
// possibly zero, is a normal outcome.
func Retrieve(query []float64, items []Item, k int, minScore float64) []Scored {
	scored := make([]Scored, 0, len(items))
	for _, it := range items {
		if it.ID == GlobalSummaryID {
			continue
		}
		scored = append(scored, Scored{Item: it, Score: Cosine(query, it.Embedding)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k >= 0 && len(scored) > k {
		scored = scored[:k]
	}

	kept := make([]Scored, 0, len(scored))
	for _, s := range scored {
		if s.Score >= minScore {
			kept = append(kept, s)
		}
	}
	return kept
}
