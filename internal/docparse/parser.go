package docparse

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/green-credit-copilot/server/internal/model"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// Parser extracts positional fragments from one uploaded file.
type Parser interface {
	Parse(ctx context.Context, filename string, data []byte) ([]model.Fragment, error)
}

// SupportedExtensions lists what the dispatching parser accepts.
var SupportedExtensions = map[string]bool{
	".pdf": true,
	".csv": true,
	".txt": true,
	".md":  true,
}

type dispatcher struct{}

// New returns the extension-dispatching parser.
func New() Parser {
	return dispatcher{}
}

func (dispatcher) Parse(ctx context.Context, filename string, data []byte) ([]model.Fragment, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("parse %s: empty file", filename)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	var frags []model.Fragment
	var err error
	switch ext {
	case ".pdf":
		frags, err = parsePDF(filename, data)
	case ".csv":
		frags, err = parseCSV(filename, data)
	case ".txt", ".md":
		frags, err = parseText(filename, data)
	default:
		return nil, fmt.Errorf("parse %s: unsupported file type %q", filename, ext)
	}
	if err != nil {
		return nil, err
	}
	if len(frags) == 0 {
		return nil, fmt.Errorf("parse %s: no extractable text", filename)
	}

	logx.Debug().Str("file", filename).Int("fragments", len(frags)).Msg("document parsed")
	return frags, nil
}
