package dashboard

// Matches reports whether value satisfies the rule. Unknown operators never
// match.
func (r ColorRule) Matches(value float64) bool {
	switch r.Operator {
	case OpLess:
		return value < r.Threshold
	case OpLessEqual:
		return value <= r.Threshold
	case OpEqual:
		return value == r.Threshold
	case OpGreater:
		return value > r.Threshold
	case OpGreaterEqual:
		return value >= r.Threshold
	default:
		return false
	}
}

// ResolveColor returns the color for value under rules. A nil value yields
// NeutralColor regardless of rules. Otherwise rules are scanned in order and
// the first match wins; DefaultColor is returned when nothing matches.
func ResolveColor(value *float64, rules []ColorRule) string {
	if value == nil {
		return NeutralColor
	}
	for _, r := range rules {
		if r.Matches(*value) {
			return r.Color
		}
	}
	return DefaultColor
}

// RulesEqual compares two rule lists element by element, order included.
func RulesEqual(a, b []ColorRule) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
