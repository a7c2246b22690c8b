package repo

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"

	errx "github.com/green-credit-copilot/server/internal/core/error"
	"github.com/green-credit-copilot/server/internal/model"
)

// DocumentRecord is the gorm row backing one cached document parse. The
// fragment list is stored as a JSON blob; it is only ever read back whole.
type DocumentRecord struct {
	FileHash     string    `gorm:"primaryKey;size:64"`
	Filename     string    `gorm:"size:512;not null"`
	Fragments    string    `gorm:"type:text"`
	FileType     string    `gorm:"size:32"`
	FileSize     int64     `gorm:"not null"`
	OwnerID      string    `gorm:"size:64;index"`
	Status       string    `gorm:"size:16;not null"`
	ErrorMessage string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (DocumentRecord) TableName() string { return "documents" }

// GormDocumentRepository stores cached parses in a relational database.
type GormDocumentRepository struct {
	db *gorm.DB
}

func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

func (r *GormDocumentRepository) Save(ctx context.Context, doc *model.CachedDocument) error {
	frags, err := sonic.MarshalString(doc.Fragments)
	if err != nil {
		return errx.New(err, http.StatusInternalServerError, "encode fragments")
	}
	rec := DocumentRecord{
		FileHash:     doc.FileHash,
		Filename:     doc.Filename,
		Fragments:    frags,
		FileType:     doc.FileType,
		FileSize:     doc.FileSize,
		OwnerID:      doc.OwnerID,
		Status:       string(doc.Status),
		ErrorMessage: doc.ErrorMessage,
		CreatedAt:    doc.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return errx.WrapDB(err)
	}
	return nil
}

func (r *GormDocumentRepository) Get(ctx context.Context, fileHash string) (*model.CachedDocument, error) {
	var rec DocumentRecord
	err := r.db.WithContext(ctx).First(&rec, "file_hash = ?", fileHash).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errx.WrapDB(err)
	}
	return recordToDocument(&rec)
}

func (r *GormDocumentRepository) List(ctx context.Context, ownerID string) ([]*model.CachedDocument, error) {
	var recs []DocumentRecord
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	out := make([]*model.CachedDocument, 0, len(recs))
	for i := range recs {
		doc, err := recordToDocument(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (r *GormDocumentRepository) UpdateStatus(ctx context.Context, fileHash string, status model.DocumentStatus, errMessage string) error {
	res := r.db.WithContext(ctx).Model(&DocumentRecord{}).
		Where("file_hash = ?", fileHash).
		Updates(map[string]any{
			"status":        string(status),
			"error_message": errMessage,
		})
	if res.Error != nil {
		return errx.WrapDB(res.Error)
	}
	if res.RowsAffected == 0 {
		return errx.WrapDB(gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *GormDocumentRepository) Delete(ctx context.Context, fileHash string) error {
	if err := r.db.WithContext(ctx).Delete(&DocumentRecord{}, "file_hash = ?", fileHash).Error; err != nil {
		return errx.WrapDB(err)
	}
	return nil
}

func recordToDocument(rec *DocumentRecord) (*model.CachedDocument, error) {
	doc := &model.CachedDocument{
		FileHash:     rec.FileHash,
		Filename:     rec.Filename,
		FileType:     rec.FileType,
		FileSize:     rec.FileSize,
		OwnerID:      rec.OwnerID,
		Status:       model.DocumentStatus(rec.Status),
		ErrorMessage: rec.ErrorMessage,
		CreatedAt:    rec.CreatedAt,
	}
	if rec.Fragments != "" {
		if err := sonic.UnmarshalString(rec.Fragments, &doc.Fragments); err != nil {
			return nil, errx.New(err, http.StatusInternalServerError, "decode fragments")
		}
	}
	return doc, nil
}

var _ model.DocumentRepository = (*GormDocumentRepository)(nil)
