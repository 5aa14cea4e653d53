package notifications

// Evaluation is the outcome of checking one rule against one reading.
type Evaluation struct {
	Triggered bool
	Reasons   []TriggeredRule
}

// Evaluate checks a reading against a rule. It is pure and total: a disabled
// rule or an absent reading never triggers, comparisons are strict, and a
// degenerate configuration with min above max may fire both bounds on the
// same reading. The caller interprets such a result; the evaluator does not
// reconcile it.
func Evaluate(rule NotificationRule, value *float64) Evaluation {
	if !rule.Enabled || value == nil {
		return Evaluation{}
	}

	var reasons []TriggeredRule
	if rule.MinEnabled && *value < rule.MinThreshold {
		reasons = append(reasons, TriggeredRule{
			MetricID:     rule.MetricID,
			MetricLabel:  rule.MetricLabel,
			Bound:        BoundMin,
			Threshold:    rule.MinThreshold,
			CurrentValue: *value,
		})
	}
	if rule.MaxEnabled && *value > rule.MaxThreshold {
		reasons = append(reasons, TriggeredRule{
			MetricID:     rule.MetricID,
			MetricLabel:  rule.MetricLabel,
			Bound:        BoundMax,
			Threshold:    rule.MaxThreshold,
			CurrentValue: *value,
		})
	}
	return Evaluation{Triggered: len(reasons) > 0, Reasons: reasons}
}
