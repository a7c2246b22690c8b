package docparse

import (
	"strings"

	"github.com/green-credit-copilot/server/internal/model"
)

// parseText splits plain text and markdown into paragraph fragments on blank
// lines.
func parseText(filename string, data []byte) ([]model.Fragment, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	var frags []model.Fragment
	para := 0
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		para++
		frags = append(frags, model.Fragment{
			Text: block,
			Meta: model.FragmentMeta{Paragraph: para, Source: filename},
		})
	}
	return frags, nil
}
