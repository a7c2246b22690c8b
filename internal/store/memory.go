package store

import (
	"context"
	"sort"
	"sync"

	"github.com/green-credit-copilot/server/internal/model"
)

// MemoryStore is an in-process VectorStore for development and tests. It
// scores by character bigram overlap instead of embeddings, which is crude
// but deterministic and needs no external services.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []memoryEntry
}

type memoryEntry struct {
	docHash string
	clause  model.StandardClause
	grams   map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) IndexFragments(_ context.Context, docHash, source string, frags []model.Fragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range frags {
		text := f.Text
		if m := f.Marker(); m != "" {
			text = m + "\n" + text
		}
		s.entries = append(s.entries, memoryEntry{
			docHash: docHash,
			clause:  model.StandardClause{Source: source, Text: text},
			grams:   bigrams(text),
		})
	}
	return nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, docHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.docHash != docHash {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

func (s *MemoryStore) Search(_ context.Context, query string, topK int) ([]model.StandardClause, error) {
	if topK <= 0 {
		topK = 4
	}
	qGrams := bigrams(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		clause model.StandardClause
		score  float32
	}
	var hits []scored
	for _, e := range s.entries {
		overlap := 0
		for g := range qGrams {
			if _, ok := e.grams[g]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		c := e.clause
		c.Score = float32(overlap) / float32(len(qGrams))
		hits = append(hits, scored{clause: c, score: c.Score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]model.StandardClause, len(hits))
	for i, h := range hits {
		out[i] = h.clause
	}
	return out, nil
}

func bigrams(s string) map[string]struct{} {
	runes := []rune(s)
	grams := make(map[string]struct{}, len(runes))
	for i := 0; i+1 < len(runes); i++ {
		grams[string(runes[i:i+2])] = struct{}{}
	}
	return grams
}
