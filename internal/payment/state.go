package payment

// StateKind is the closed set of payment states.
type StateKind string

const (
	StateCompleted           StateKind = "completed"
	StateAuthorization       StateKind = "authorization"
	StateRefunded            StateKind = "refunded"
	StateAuthorizationVoided StateKind = "authorization_voided"
	StateCancelled           StateKind = "cancelled"
	StatePartiallyRefunded   StateKind = "partially_refunded"
	// StateOther carries a gateway failure message verbatim.
	StateOther StateKind = "other"
	// StateUnmapped marks an approved transaction whose type has no mapping.
	StateUnmapped StateKind = "unmapped"
)

// State is a payment state. Message is only set for StateOther.
type State struct {
	Kind    StateKind
	Message string
}

func Known(kind StateKind) State { return State{Kind: kind} }

func Other(message string) State { return State{Kind: StateOther, Message: message} }

func Unmapped() State { return State{Kind: StateUnmapped} }

func (s State) Is(kind StateKind) bool { return s.Kind == kind }

func (s State) IsZero() bool { return s.Kind == "" }

// String is the display form: the gateway message for StateOther, the kind otherwise.
func (s State) String() string {
	if s.Kind == StateOther {
		return s.Message
	}
	return string(s.Kind)
}

// Refundable reports whether a refund may be requested in this state.
func (s State) Refundable() bool {
	return s.Kind == StateCompleted || s.Kind == StatePartiallyRefunded
}

// ParseState rebuilds a State from its persisted columns.
func ParseState(kind, message string) State {
	k := StateKind(kind)
	switch k {
	case StateCompleted, StateAuthorization, StateRefunded, StateAuthorizationVoided,
		StateCancelled, StatePartiallyRefunded, StateUnmapped:
		return State{Kind: k}
	case StateOther:
		return Other(message)
	default:
		// Rows written before the kind column existed stored the message as the state.
		return Other(kind)
	}
}
