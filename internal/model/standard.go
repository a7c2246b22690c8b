package model

import (
	"fmt"
	"strings"
)

// StandardClause is one retrieved green-credit standard passage with its
// provenance and similarity score.
type StandardClause struct {
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Score  float32 `json:"score"`
}

// FormatClauses renders retrieved clauses as a numbered, source-attributed
// block for prompt injection. Empty input yields an empty string so callers
// can substitute an explicit no-result notice.
func FormatClauses(clauses []StandardClause) string {
	if len(clauses) == 0 {
		return ""
	}
	var b strings.Builder
	for i, c := range clauses {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. 【%s】%s", i+1, c.Source, c.Text)
	}
	return b.String()
}
