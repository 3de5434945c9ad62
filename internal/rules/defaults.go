package rules

import "herald/internal/constants"

// DefaultRules returns the expressions seeded at startup for keys that
// have not been configured yet. Validation requires the identity and
// type fields plus the recipient field the type implies; routing sends
// email-typed events to direct dispatch.
func DefaultRules() map[string]string {
	return map[string]string{
		constants.RuleValidation: `has(event.notificationId) && has(event.type)` +
			` && (event.type == "email" ? has(event.email) : true)` +
			` && (event.type == "sms" ? has(event.mobileNumber) : true)`,
		constants.RuleEnrichment:     `event.email.upperAscii()`,
		constants.RuleTransformation: `{"location": "Updated Location"}`,
		constants.RuleRouting:        `event.type == "email"`,
	}
}

// KnownRuleNames lists the logical rule slots the pipeline consults.
func KnownRuleNames() []string {
	return []string{
		constants.RuleValidation,
		constants.RuleEnrichment,
		constants.RuleTransformation,
		constants.RuleRouting,
	}
}

func IsKnownRuleName(name string) bool {
	for _, n := range KnownRuleNames() {
		if n == name {
			return true
		}
	}
	return false
}
