package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	errx "github.com/green-credit-copilot/server/internal/core/error"
	"github.com/green-credit-copilot/server/internal/docparse"
	"github.com/green-credit-copilot/server/internal/model"
	"github.com/green-credit-copilot/server/internal/store"
	"github.com/green-credit-copilot/server/pkg/cache"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// Config holds the document pipeline tunables.
type Config struct {
	MaxFileSize  int64  `split_words:"true" default:"20971520"`
	IndexTimeout string `split_words:"true" default:"2m"`
}

// Service owns the upload pipeline: content-hash dedupe, parsing, cached
// lookups and asynchronous knowledge-base indexing.
type Service struct {
	repo         model.DocumentRepository
	parser       docparse.Parser
	indexer      store.Indexer
	hot          *cache.Bucket
	maxFileSize  int64
	indexTimeout time.Duration
}

func NewService(repo model.DocumentRepository, parser docparse.Parser, indexer store.Indexer, cacheSvc *cache.Service, cfg Config) *Service {
	timeout, err := time.ParseDuration(cfg.IndexTimeout)
	if err != nil || timeout <= 0 {
		timeout = 2 * time.Minute
	}
	var hot *cache.Bucket
	if cacheSvc != nil {
		hot = cacheSvc.Bucket("doc")
	}
	return &Service{
		repo:         repo,
		parser:       parser,
		indexer:      indexer,
		hot:          hot,
		maxFileSize:  cfg.MaxFileSize,
		indexTimeout: timeout,
	}
}

// HashBytes returns the content key for a file: hex SHA-256 over the raw bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Upload ingests one file. Byte-identical re-uploads reuse the cached parse
// and never touch the parser again; only a previously failed parse is retried.
func (s *Service) Upload(ctx context.Context, ownerID, filename string, data []byte) (*model.CachedDocument, error) {
	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return nil, errx.New(fmt.Errorf("file %s is %d bytes", filename, len(data)), http.StatusRequestEntityTooLarge, "file too large")
	}

	hash := HashBytes(data)
	if doc := s.cached(ctx, hash); doc != nil && doc.Status != model.DocFailed {
		logx.Debug().Str("hash", hash).Str("file", filename).Msg("document cache hit")
		return doc, nil
	}

	// The record is created before parsing so the status lifecycle is
	// observable: PENDING, PARSING, then INDEXING or FAILED.
	doc := &model.CachedDocument{
		FileHash:  hash,
		Filename:  filename,
		FileType:  strings.ToLower(filepath.Ext(filename)),
		FileSize:  int64(len(data)),
		OwnerID:   ownerID,
		Status:    model.DocPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}
	s.markStatus(ctx, doc, model.DocParsing, "")

	frags, err := s.parser.Parse(ctx, filename, data)
	if err != nil {
		s.markStatus(ctx, doc, model.DocFailed, err.Error())
		return nil, err
	}

	doc.Fragments = frags
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}
	s.cacheSet(doc)

	if s.indexer != nil {
		go s.indexAsync(doc.FileHash, doc.Filename, doc.Fragments)
	} else {
		s.markStatus(ctx, doc, model.DocCompleted, "")
	}
	return doc, nil
}

// indexAsync runs on a detached context so a closed upload request cannot
// cancel the knowledge-base write.
func (s *Service) indexAsync(hash, filename string, frags []model.Fragment) {
	ctx, cancel := context.WithTimeout(context.Background(), s.indexTimeout)
	defer cancel()

	if err := s.repo.UpdateStatus(ctx, hash, model.DocIndexing, ""); err != nil {
		logx.Warn().Err(err).Str("hash", hash).Msg("failed to mark document indexing")
	}
	s.cacheDrop(hash)

	if err := s.indexer.IndexFragments(ctx, hash, filename, frags); err != nil {
		logx.Error().Err(err).Str("hash", hash).Msg("document indexing failed")
		if uerr := s.repo.UpdateStatus(ctx, hash, model.DocFailed, err.Error()); uerr != nil {
			logx.Warn().Err(uerr).Str("hash", hash).Msg("failed to mark document failed")
		}
		s.cacheDrop(hash)
		return
	}

	if err := s.repo.UpdateStatus(ctx, hash, model.DocCompleted, ""); err != nil {
		logx.Warn().Err(err).Str("hash", hash).Msg("failed to mark document completed")
	}
	s.cacheDrop(hash)
	logx.Info().Str("hash", hash).Str("file", filename).Int("fragments", len(frags)).Msg("document indexed")
}

// Get returns one cached document, enforcing ownership.
func (s *Service) Get(ctx context.Context, ownerID, hash string) (*model.CachedDocument, error) {
	doc, err := s.repo.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errx.New(nil, http.StatusNotFound, errx.RedisNotFoundMessage)
	}
	if doc.OwnerID != ownerID {
		return nil, errx.PermissionDenied()
	}
	return doc, nil
}

// List returns the caller's documents, most recent first.
func (s *Service) List(ctx context.Context, ownerID string) ([]*model.CachedDocument, error) {
	return s.repo.List(ctx, ownerID)
}

// Delete removes the knowledge-base vectors, the record and the hot cache
// entry for one document.
func (s *Service) Delete(ctx context.Context, ownerID, hash string) error {
	if _, err := s.Get(ctx, ownerID, hash); err != nil {
		return err
	}
	if s.indexer != nil {
		if err := s.indexer.DeleteDocument(ctx, hash); err != nil {
			logx.Warn().Err(err).Str("hash", hash).Msg("failed to delete document vectors")
		}
	}
	if err := s.repo.Delete(ctx, hash); err != nil {
		return err
	}
	s.cacheDrop(hash)
	return nil
}

// Resolve maps turn attachments to marked-up document text for the workflow.
// Missing or foreign hashes are skipped with a warning; a chat turn must not
// fail because one stale attachment id survived on the client.
func (s *Service) Resolve(ctx context.Context, ownerID string, attachments []model.Attachment) []string {
	var out []string
	for _, att := range attachments {
		doc, err := s.Get(ctx, ownerID, att.Hash)
		if err != nil {
			logx.Warn().Err(err).Str("hash", att.Hash).Str("file", att.Name).Msg("attachment not resolvable")
			continue
		}
		if len(doc.Fragments) == 0 {
			continue
		}
		out = append(out, fmt.Sprintf("《%s》\n%s", doc.Filename, model.FormatFragments(doc.Fragments)))
	}
	return out
}

func (s *Service) cached(ctx context.Context, hash string) *model.CachedDocument {
	if s.hot != nil {
		if v, ok := s.hot.Get(hash); ok {
			if doc, ok := v.(*model.CachedDocument); ok {
				return doc
			}
		}
	}
	doc, err := s.repo.Get(ctx, hash)
	if err != nil {
		logx.Warn().Err(err).Str("hash", hash).Msg("document lookup failed")
		return nil
	}
	if doc != nil {
		s.cacheSet(doc)
	}
	return doc
}

func (s *Service) markStatus(ctx context.Context, doc *model.CachedDocument, status model.DocumentStatus, msg string) {
	if err := s.repo.UpdateStatus(ctx, doc.FileHash, status, msg); err != nil {
		logx.Warn().Err(err).Str("hash", doc.FileHash).Msg("failed to update document status")
		return
	}
	doc.Status = status
	doc.ErrorMessage = msg
	s.cacheSet(doc)
}

func (s *Service) cacheSet(doc *model.CachedDocument) {
	if s.hot != nil {
		s.hot.Set(doc.FileHash, doc)
	}
}

func (s *Service) cacheDrop(hash string) {
	if s.hot != nil {
		s.hot.Delete(hash)
	}
}
