package services

type OutcomeKind string

const (
	// Applied means state changed.
	Applied OutcomeKind = "applied"
	// NoOp means the request was understood and there was nothing to do.
	NoOp OutcomeKind = "noop"
	// Conflict means the request contradicts the current state, e.g. paying a
	// cancelled purchase. Nothing changed that the caller asked for.
	Conflict OutcomeKind = "conflict"
	// Invalid means the request was rejected before touching any state.
	Invalid OutcomeKind = "invalid"
	// TransientFailure is worth retrying later.
	TransientFailure OutcomeKind = "transient_failure"
	FatalError       OutcomeKind = "fatal_error"
)

type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Err    error
}

func applied(reason string) Outcome  { return Outcome{Kind: Applied, Reason: reason} }
func noop(reason string) Outcome     { return Outcome{Kind: NoOp, Reason: reason} }
func conflict(reason string) Outcome { return Outcome{Kind: Conflict, Reason: reason} }

func invalid(err error) Outcome {
	return Outcome{Kind: Invalid, Reason: err.Error(), Err: err}
}

func transient(reason string, err error) Outcome {
	return Outcome{Kind: TransientFailure, Reason: reason, Err: err}
}

func fatal(reason string, err error) Outcome {
	return Outcome{Kind: FatalError, Reason: reason, Err: err}
}

func (o Outcome) Retryable() bool {
	return o.Kind == TransientFailure
}

// Succeeded is true for every outcome a caller should acknowledge.
func (o Outcome) Succeeded() bool {
	return o.Kind == Applied || o.Kind == NoOp || o.Kind == Conflict
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return string(o.Kind)
	}
	return string(o.Kind) + ": " + o.Reason
}
