package store

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/green-credit-copilot/server/internal/model"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// MilvusConfig configures the standards knowledge base collection.
type MilvusConfig struct {
	Address    string `envconfig:"MILVUS_ADDRESS" default:"localhost:19530"`
	Username   string `envconfig:"MILVUS_USERNAME"`
	Password   string `envconfig:"MILVUS_PASSWORD"`
	Database   string `envconfig:"MILVUS_DATABASE"`
	Collection string `envconfig:"MILVUS_COLLECTION" default:"green_standards"`
	Dimension  int    `envconfig:"MILVUS_DIMENSION" default:"768"`
}

const (
	fieldText    = "text"
	fieldSource  = "source"
	fieldDocHash = "doc_hash"

	maxTextLen   = 8192
	maxSourceLen = 512
	maxHashLen   = 64
)

// MilvusStore keeps standard clauses and indexed document fragments in one
// Milvus collection, embedded on write and on query.
type MilvusStore struct {
	client     *milvusclient.Client
	embedder   Embedder
	collection string
	dimension  int
}

func NewMilvusStore(ctx context.Context, cfg MilvusConfig, embedder Embedder) (*MilvusStore, error) {
	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	s := &MilvusStore{
		client:     c,
		embedder:   embedder,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func (s *MilvusStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	collSchema := entity.NewSchema().
		WithName(s.collection).
		WithDescription("green credit standard clauses and indexed document fragments").
		WithAutoID(true)

	collSchema.WithField(
		entity.NewField().
			WithName("id").
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true).
			WithIsAutoID(true),
	)
	collSchema.WithField(
		entity.NewField().
			WithName("embedding").
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(s.dimension)),
	)
	collSchema.WithField(
		entity.NewField().WithName(fieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxTextLen),
	)
	collSchema.WithField(
		entity.NewField().WithName(fieldSource).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxSourceLen),
	)
	collSchema.WithField(
		entity.NewField().WithName(fieldDocHash).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxHashLen),
	)

	if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(s.collection, collSchema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(entity.L2, 128)
	createIdxTask, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(s.collection, "embedding", idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	loadTask, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}

	logx.Info().Str("collection", s.collection).Int("dimension", s.dimension).Msg("milvus collection ready")
	return nil
}

// IndexFragments embeds and stores one document's fragments. The positional
// marker is baked into the stored text so retrieval keeps provenance.
func (s *MilvusStore) IndexFragments(ctx context.Context, docHash, source string, frags []model.Fragment) error {
	if len(frags) == 0 {
		return nil
	}

	texts := make([]string, 0, len(frags))
	sources := make([]string, 0, len(frags))
	hashes := make([]string, 0, len(frags))
	for _, f := range frags {
		text := f.Text
		if m := f.Marker(); m != "" {
			text = m + "\n" + text
		}
		if len(text) > maxTextLen {
			text = text[:maxTextLen]
		}
		texts = append(texts, text)
		sources = append(sources, source)
		hashes = append(hashes, docHash)
	}

	embeddings, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	columns := []column.Column{
		column.NewColumnFloatVector("embedding", len(embeddings[0]), embeddings),
		column.NewColumnVarChar(fieldText, texts),
		column.NewColumnVarChar(fieldSource, sources),
		column.NewColumnVarChar(fieldDocHash, hashes),
	}

	if _, err := s.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(s.collection, columns...)); err != nil {
		return fmt.Errorf("failed to insert fragments: %w", err)
	}

	flushTask, err := s.client.Flush(ctx, milvusclient.NewFlushOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}

	logx.Debug().Str("doc_hash", docHash).Int("fragments", len(frags)).Msg("fragments indexed")
	return nil
}

// DeleteDocument removes every fragment indexed under a document hash.
func (s *MilvusStore) DeleteDocument(ctx context.Context, docHash string) error {
	expr := fmt.Sprintf("%s == %q", fieldDocHash, docHash)
	if _, err := s.client.Delete(ctx, milvusclient.NewDeleteOption(s.collection).WithExpr(expr)); err != nil {
		return fmt.Errorf("failed to delete document fragments: %w", err)
	}
	return nil
}

// Search embeds the query and returns the closest clauses, best first.
func (s *MilvusStore) Search(ctx context.Context, query string, topK int) ([]model.StandardClause, error) {
	if topK <= 0 {
		topK = 4
	}

	embeddings, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	results, err := s.client.Search(ctx, milvusclient.NewSearchOption(
		s.collection,
		topK,
		[]entity.Vector{entity.FloatVector(embeddings[0])},
	).WithANNSField("embedding").
		WithSearchParam("nprobe", "16").
		WithOutputFields(fieldText, fieldSource))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return []model.StandardClause{}, nil
	}

	clauses := make([]model.StandardClause, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		clause := model.StandardClause{Score: results[0].Scores[i]}
		for _, field := range results[0].Fields {
			col, ok := field.(*column.ColumnVarChar)
			if !ok {
				continue
			}
			switch col.Name() {
			case fieldText:
				clause.Text = col.Data()[i]
			case fieldSource:
				clause.Source = col.Data()[i]
			}
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}
