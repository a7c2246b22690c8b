package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePassClearsMissingItems(t *testing.T) {
	d := &AuditDecision{
		Status:       AuditPass,
		MissingItems: []string{"营业执照"},
		GuideMessage: "材料齐全",
	}
	d.Normalize()
	assert.Equal(t, AuditPass, d.Status)
	assert.Empty(t, d.MissingItems)
}

func TestNormalizeUnknownStatusDegradesToMissing(t *testing.T) {
	d := &AuditDecision{Status: "MAYBE", MissingItems: []string{"企业全称"}}
	d.Normalize()
	assert.Equal(t, AuditMissing, d.Status)
	assert.Equal(t, []string{"企业全称"}, d.MissingItems)
}
