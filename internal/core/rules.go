package core

import "strings"

// RuleMatch pairs a transaction with the first rule that matched it.
type RuleMatch struct {
	Transaction Transaction
	Rule        Rule
}

// ApplyRules partitions transactions into rule matches and a remainder for
// the AI collaborator. Rules are scanned in the supplied order and the first
// match wins, so rule order is significant: reordering rules can change the
// outcome for a transaction that matches more than one.
//
// A rule matches when its match value is a case-insensitive substring of the
// transaction field it names. A transaction is never in both result sets.
func ApplyRules(txns []Transaction, rules []Rule) (matched []RuleMatch, remaining []Transaction) {
	for _, t := range txns {
		var hit *Rule
		for i, r := range rules {
			field := t.Field(r.MatchField)
			if field == "" {
				continue
			}
			if strings.Contains(strings.ToLower(field), strings.ToLower(r.MatchValue)) {
				hit = &rules[i]
				break
			}
		}
		if hit != nil {
			matched = append(matched, RuleMatch{Transaction: t, Rule: *hit})
		} else {
			remaining = append(remaining, t)
		}
	}
	return matched, remaining
}
