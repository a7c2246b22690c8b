package store

import (
	"context"

	"github.com/green-credit-copilot/server/internal/model"
)

// Indexer writes parsed document fragments into the policy knowledge base.
type Indexer interface {
	IndexFragments(ctx context.Context, docHash, source string, frags []model.Fragment) error
	DeleteDocument(ctx context.Context, docHash string) error
}

// Retriever answers similarity queries over indexed standard clauses.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]model.StandardClause, error)
}

// VectorStore is the combined surface the document pipeline and the policy
// nodes share.
type VectorStore interface {
	Indexer
	Retriever
}

// Embedder turns text into dense vectors for indexing and querying.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
