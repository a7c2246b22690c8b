package model

// Entities is the structured record extracted from uploaded document text.
// Every field stays nil until extraction succeeds for it.
type Entities struct {
	CompanyName      *string `json:"company_name"`
	LoanPurpose      *string `json:"loan_purpose"`
	IndustryCategory *string `json:"industry"`
}

// Complete reports whether the fields the audit rule cares about are present.
func (e *Entities) Complete() bool {
	return e != nil && e.CompanyName != nil && *e.CompanyName != "" &&
		e.LoanPurpose != nil && *e.LoanPurpose != ""
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

// CompanyOr returns the company name or the given fallback.
func (e *Entities) CompanyOr(fallback string) string {
	if e == nil {
		return fallback
	}
	return deref(e.CompanyName, fallback)
}

// PurposeOr returns the loan purpose or the given fallback.
func (e *Entities) PurposeOr(fallback string) string {
	if e == nil {
		return fallback
	}
	return deref(e.LoanPurpose, fallback)
}

// Summary renders a one-line trace representation.
func (e *Entities) Summary() string {
	return "企业=" + e.CompanyOr("?") + " 用途=" + e.PurposeOr("?") + " 行业=" + e.IndustryOr("?")
}

// IndustryOr returns the industry category or the given fallback.
func (e *Entities) IndustryOr(fallback string) string {
	if e == nil {
		return fallback
	}
	return deref(e.IndustryCategory, fallback)
}
