package domain

// Reasons attached to FilterDecision values.
const (
	ReasonMatchedRule = "Matched blocking rule"
	ReasonNoMatch     = "No matching rule found"
	reasonErrorPrefix = "Error during filtering: "
)

// FilterDecision is the outcome of evaluating one candidate request.
// Constructed fresh per evaluation and never mutated after it is returned.
type FilterDecision struct {
	ShouldBlock bool   `json:"shouldBlock"`
	Reason      string `json:"reason"`
}

// NewFilterDecision builds the decision for a completed evaluation.
func NewFilterDecision(blocked bool) FilterDecision {
	if blocked {
		return FilterDecision{ShouldBlock: true, Reason: ReasonMatchedRule}
	}
	return FilterDecision{ShouldBlock: false, Reason: ReasonNoMatch}
}

// ErrorDecision is the fail-open decision produced when evaluation itself failed.
func ErrorDecision(err error) FilterDecision {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return FilterDecision{ShouldBlock: false, Reason: reasonErrorPrefix + msg}
}

// HostDecision is the outcome of evaluating a host against the host-rule repository.
// Pure value type, no external dependencies.
type HostDecision struct {
	Matched     bool       // true if any rule matched
	Action      RuleAction // action of the matched rule
	MatchedRule string     // rule name that matched (anchor for suffix, exact host for exact)
	Source      string     // source identifier of the matched rule
	Kind        HostRuleKind
}

// IsBlocked reports whether the matched rule blocks the host.
func (d HostDecision) IsBlocked() bool { return d.Matched && d.Action == ActionBlock }

// IsAllowed reports whether the matched rule is an exception.
func (d HostDecision) IsAllowed() bool { return d.Matched && d.Action == ActionAllow }

// EmptyDecision returns a no-match decision.
func EmptyDecision() HostDecision { return HostDecision{} }
