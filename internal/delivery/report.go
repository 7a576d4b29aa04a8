package delivery

import "github.com/tinywideclouds/go-emergency-notifier/pkg/notification"

// Target is one resolved destination: who, on which channel, with which token.
type Target struct {
	RecipientID string
	Channel     notification.Channel
	Token       string
}

// FailureReason classifies a failed delivery.
type FailureReason string

const (
	ReasonInvalidDestination FailureReason = "invalid-destination"
	ReasonTransient          FailureReason = "transient"
)

// Outcome is the per-recipient result of a delivery attempt.
type Outcome struct {
	Target  Target
	Success bool
	Reason  FailureReason
	Err     error
}

// Report aggregates outcomes for one trigger invocation. It is a value:
// merging produces a new Report and never mutates either operand.
type Report struct {
	outcomes     []Outcome
	successCount int
	failureCount int
	batches      int
}

// NewReport builds a single-batch report from outcomes.
func NewReport(outcomes []Outcome) Report {
	r := Report{outcomes: outcomes, batches: 1}
	for _, o := range outcomes {
		if o.Success {
			r.successCount++
		} else {
			r.failureCount++
		}
	}
	return r
}

func (r Report) merge(o Report) Report {
	outcomes := make([]Outcome, 0, len(r.outcomes)+len(o.outcomes))
	outcomes = append(outcomes, r.outcomes...)
	outcomes = append(outcomes, o.outcomes...)
	return Report{
		outcomes:     outcomes,
		successCount: r.successCount + o.successCount,
		failureCount: r.failureCount + o.failureCount,
		batches:      r.batches + o.batches,
	}
}

func (r Report) SuccessCount() int { return r.successCount }
func (r Report) FailureCount() int { return r.failureCount }

// Batches is the number of gateway calls made.
func (r Report) Batches() int { return r.batches }

// Outcomes returns a copy of the per-recipient outcomes in delivery order.
func (r Report) Outcomes() []Outcome {
	out := make([]Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// Invalid lists the targets whose token must be revoked.
func (r Report) Invalid() []Target {
	var invalid []Target
	for _, o := range r.outcomes {
		if !o.Success && o.Reason == ReasonInvalidDestination {
			invalid = append(invalid, o.Target)
		}
	}
	return invalid
}

// TransientCount is the number of failures that left the token untouched.
func (r Report) TransientCount() int {
	n := 0
	for _, o := range r.outcomes {
		if !o.Success && o.Reason == ReasonTransient {
			n++
		}
	}
	return n
}
