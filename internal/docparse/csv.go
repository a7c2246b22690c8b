package docparse

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/green-credit-copilot/server/internal/model"
)

// parseCSV renders each data row as a "header: value" fragment so the model
// sees column meaning, not bare cells. The header row is row 1; data rows
// keep their file row numbers.
func parseCSV(filename string, data []byte) ([]model.Fragment, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	var frags []model.Fragment
	row := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s row %d: %w", filename, row+1, err)
		}
		row++

		var parts []string
		for i, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				parts = append(parts, strings.TrimSpace(header[i])+": "+cell)
			} else {
				parts = append(parts, cell)
			}
		}
		if len(parts) == 0 {
			continue
		}
		frags = append(frags, model.Fragment{
			Text: strings.Join(parts, "；"),
			Meta: model.FragmentMeta{Sheet: "Sheet1", Row: row, Source: filename},
		})
	}
	return frags, nil
}
