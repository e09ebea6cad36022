package gcmapi

// Result level error codes reported by the gateway.
const (
	CodeMissingRegistration = "MissingRegistration"
	CodeInvalidRegistration = "InvalidRegistration"
	CodeMismatchSenderId    = "MismatchSenderId"
	CodeNotRegistered       = "NotRegistered"
	CodeMessageTooBig       = "MessageTooBig"
	CodeInvalidTtl          = "InvalidTtl"
	CodeInvalidDataKey      = "InvalidDataKey"
	CodeUnavailable         = "Unavailable"
	CodeInternalServerError = "InternalServerError"
)

type Action uint8

const (
	ActionFatal Action = iota
	ActionEvict
	ActionRetry
)

func (a Action) String() string {
	switch a {
	case ActionFatal:
		return "fatal"
	case ActionEvict:
		return "evict"
	case ActionRetry:
		return "retry"
	}
	return "unknown"
}

// ErrorAction is what the dispatcher does about a result level error code.
type ErrorAction struct {
	Action Action
	// Kind is set for ActionFatal.
	Kind FatalKind
}

var errorActions = map[string]ErrorAction{
	CodeMissingRegistration: {Action: ActionFatal, Kind: FatalMissingRegistration},
	CodeInvalidRegistration: {Action: ActionEvict},
	CodeMismatchSenderId:    {Action: ActionEvict},
	CodeNotRegistered:       {Action: ActionEvict},
	CodeMessageTooBig:       {Action: ActionFatal, Kind: FatalPayloadTooLarge},
	CodeInvalidTtl:          {Action: ActionFatal, Kind: FatalInvalidTimeToLive},
	CodeInvalidDataKey:      {Action: ActionFatal, Kind: FatalReservedKeyUsed},
	CodeUnavailable:         {Action: ActionRetry},
	CodeInternalServerError: {Action: ActionFatal, Kind: FatalInternalServerError},
}

// LookupError maps a gateway error code to its action. Unknown codes are fatal.
func LookupError(code string) ErrorAction {
	if a, ok := errorActions[code]; ok {
		return a
	}
	return ErrorAction{Action: ActionFatal, Kind: FatalUnknownGatewayError}
}
