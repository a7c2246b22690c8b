package model

// AuditStatus is the terminal verdict of the audit agent loop.
type AuditStatus string

const (
	AuditPass    AuditStatus = "PASS"
	AuditMissing AuditStatus = "MISSING"
)

// AuditDecision is the structured terminal output of the audit engine.
// GuideMessage is user-facing; Reason never leaves the internal trace.
type AuditDecision struct {
	Status       AuditStatus `json:"status"`
	MissingItems []string    `json:"missing_items"`
	GuideMessage string      `json:"guide_message"`
	Reason       string      `json:"reason"`
}

// Normalize enforces the decision invariants: PASS implies an empty
// missing-items list, and an unknown status degrades to MISSING.
func (d *AuditDecision) Normalize() {
	if d.Status != AuditPass && d.Status != AuditMissing {
		d.Status = AuditMissing
	}
	if d.Status == AuditPass {
		d.MissingItems = nil
	}
}
