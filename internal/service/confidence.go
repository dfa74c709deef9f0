package service

// Decision is the confidence gate's verdict for one discovered fact
type Decision int

const (
	// Accept takes the fact as-is.
	Accept Decision = iota
	// Retry re-verifies the fact once more before giving up on the
	// threshold.
	Retry
	// AcceptLowConfidence persists the fact but counts it in the run's
	// low_confidence tally for operator triage.
	AcceptLowConfidence
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Retry:
		return "retry"
	case AcceptLowConfidence:
		return "accept_low_confidence"
	default:
		return "unknown"
	}
}

// ConfidenceGate decides whether a discovered fact's confidence score is
// trustworthy enough to accept outright. Evaluate is pure; the coordinator
// owns the confidence_retry / confidence_gate events.
type ConfidenceGate struct {
	// Threshold is the minimum confidence accepted without retry.
	Threshold float64
	// MaxRetries bounds re-verification attempts per fact per run.
	// Unbounded retries risk unterminated checks.
	MaxRetries int
}

// Evaluate returns the decision for a fact given its confidence and how many
// retries it has already consumed in this run
func (g ConfidenceGate) Evaluate(confidence float64, retriesUsed int) Decision {
	if confidence >= g.Threshold {
		return Accept
	}
	if retriesUsed < g.MaxRetries {
		return Retry
	}
	return AcceptLowConfidence
}
