package docparse

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/green-credit-copilot/server/internal/model"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// parsePDF extracts one fragment per page. Pages that fail text extraction
// are skipped rather than failing the whole document; scanned pages simply
// have no text layer.
func parsePDF(filename string, data []byte) ([]model.Fragment, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	var frags []model.Fragment
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logx.Warn().Str("file", filename).Int("page", i).Err(err).Msg("pdf page text extraction failed, page skipped")
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		frags = append(frags, model.Fragment{
			Text: text,
			Meta: model.FragmentMeta{Page: i, Source: filename},
		})
	}
	return frags, nil
}
