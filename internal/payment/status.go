package payment

// PayTabs transaction types.
const (
	TranTypeSale    = "Sale"
	TranTypeAuth    = "Auth"
	TranTypeRefund  = "Refund"
	TranTypeCapture = "Capture"
	TranTypeVoid    = "Void"
)

// approvedStates is matched exactly. IPN bodies spell types in lowercase.
var approvedStates = map[string]StateKind{
	TranTypeSale:    StateCompleted,
	TranTypeAuth:    StateAuthorization,
	TranTypeRefund:  StateRefunded,
	TranTypeCapture: StateCompleted,
	TranTypeVoid:    StateAuthorizationVoided,
	"sale":          StateCompleted,
	"auth":          StateAuthorization,
	"refund":        StateRefunded,
	"capture":       StateCompleted,
	"void":          StateAuthorizationVoided,
}

// MapStatus maps a gateway outcome to a payment state.
//
// Approved outcomes map by transaction type; a type outside the table yields
// Unmapped. Cancelled maps to StateCancelled whatever the type. Any other
// status passes the gateway message through as Other.
func MapStatus(respStatus, tranType, respMessage string) State {
	switch respStatus {
	case RespStatusApproved:
		if kind, ok := approvedStates[tranType]; ok {
			return Known(kind)
		}
		return Unmapped()
	case RespStatusCancelled:
		return Known(StateCancelled)
	default:
		return Other(respMessage)
	}
}
