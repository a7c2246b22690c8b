package model

import "strings"

// Intent is the classified purpose of a user utterance.
type Intent string

const (
	IntentGeneralChat       Intent = "GENERAL_CHAT"
	IntentPolicyQuery       Intent = "POLICY_QUERY"
	IntentProjectAudit      Intent = "PROJECT_AUDIT"
	IntentSupplementaryInfo Intent = "SUPPLEMENTARY_INFO"
)

// ParseIntent normalises a classifier label into the closed intent set.
// Unknown or unparseable labels degrade to GENERAL_CHAT so a misbehaving
// classifier can never block the conversation. When the model wraps the
// label in prose, lexical containment acts as a safety net.
func ParseIntent(raw string) Intent {
	label := strings.ToUpper(strings.TrimSpace(raw))
	label = strings.Trim(label, "\"'`.")

	switch Intent(label) {
	case IntentGeneralChat, IntentPolicyQuery, IntentProjectAudit, IntentSupplementaryInfo:
		return Intent(label)
	}

	switch {
	case strings.Contains(label, "POLICY"):
		return IntentPolicyQuery
	case strings.Contains(label, "AUDIT") || strings.Contains(label, "PROJECT"):
		return IntentProjectAudit
	case strings.Contains(label, "SUPPLEMENT"):
		return IntentSupplementaryInfo
	}

	return IntentGeneralChat
}
