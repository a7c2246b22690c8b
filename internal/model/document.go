package model

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DocumentStatus tracks the parse/index lifecycle of a cached document.
type DocumentStatus string

const (
	DocPending   DocumentStatus = "PENDING"
	DocParsing   DocumentStatus = "PARSING"
	DocIndexing  DocumentStatus = "INDEXING"
	DocCompleted DocumentStatus = "COMPLETED"
	DocFailed    DocumentStatus = "FAILED"
)

// FragmentMeta carries the positional origin of one content fragment.
// Exactly the fields relevant to the source format are set.
type FragmentMeta struct {
	Page      int    `json:"page,omitempty"`
	Sheet     string `json:"sheet,omitempty"`
	Row       int    `json:"row,omitempty"`
	Slide     int    `json:"slide,omitempty"`
	Paragraph int    `json:"paragraph,omitempty"`
	Source    string `json:"source,omitempty"`
}

// Fragment is one positional slice of a parsed document.
type Fragment struct {
	Text string       `json:"text"`
	Meta FragmentMeta `json:"metadata"`
}

// Marker renders the positional prefix used when fragments are concatenated
// into prompt context, so the model can cite where a fact came from.
func (f Fragment) Marker() string {
	switch {
	case f.Meta.Page > 0:
		return fmt.Sprintf("[Page %d]", f.Meta.Page)
	case f.Meta.Sheet != "" && f.Meta.Row > 0:
		return fmt.Sprintf("[Sheet: %s, Row: %d]", f.Meta.Sheet, f.Meta.Row)
	case f.Meta.Slide > 0:
		return fmt.Sprintf("[Slide %d]", f.Meta.Slide)
	case f.Meta.Paragraph > 0:
		return fmt.Sprintf("[Para %d]", f.Meta.Paragraph)
	}
	return ""
}

// FormatFragments joins fragments into a single marked-up text block.
func FormatFragments(frags []Fragment) string {
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		if m := f.Marker(); m != "" {
			parts = append(parts, m+"\n"+f.Text)
		} else {
			parts = append(parts, f.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// CachedDocument is the stored parse of one uploaded file, keyed by the
// SHA-256 of its bytes so byte-identical uploads are parsed at most once.
type CachedDocument struct {
	FileHash     string
	Filename     string
	Fragments    []Fragment
	FileType     string
	FileSize     int64
	OwnerID      string
	Status       DocumentStatus
	ErrorMessage string
	CreatedAt    time.Time
}

// DocumentRepository persists cached document parses keyed by file hash.
type DocumentRepository interface {
	Save(ctx context.Context, doc *CachedDocument) error
	Get(ctx context.Context, fileHash string) (*CachedDocument, error)
	List(ctx context.Context, ownerID string) ([]*CachedDocument, error)
	UpdateStatus(ctx context.Context, fileHash string, status DocumentStatus, errMessage string) error
	Delete(ctx context.Context, fileHash string) error
}
