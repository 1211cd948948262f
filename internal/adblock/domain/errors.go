package domain

import "errors"

// ErrorKind is the closed set of failure categories reported by the filter
// policy controller. Callers branch on the kind, never on message text.
type ErrorKind string

const (
	KindInitializationFailed    ErrorKind = "INITIALIZATION_FAILED"
	KindNotInitialized          ErrorKind = "NOT_INITIALIZED"
	KindNativeModuleUnavailable ErrorKind = "NATIVE_MODULE_UNAVAILABLE"
	KindFilterRequestFailed     ErrorKind = "FILTER_REQUEST_FAILED"
	KindEnableFailed            ErrorKind = "ENABLE_FAILED"
	KindDisableFailed           ErrorKind = "DISABLE_FAILED"
	KindUpdateFiltersFailed     ErrorKind = "UPDATE_FILTERS_FAILED"
	KindStatusCheckFailed       ErrorKind = "STATUS_CHECK_FAILED"
)

// ErrorKinds lists every kind in declaration order.
var ErrorKinds = []ErrorKind{
	KindInitializationFailed,
	KindNotInitialized,
	KindNativeModuleUnavailable,
	KindFilterRequestFailed,
	KindEnableFailed,
	KindDisableFailed,
	KindUpdateFiltersFailed,
	KindStatusCheckFailed,
}

// Valid reports whether k belongs to the closed set.
func (k ErrorKind) Valid() bool {
	for _, known := range ErrorKinds {
		if k == known {
			return true
		}
	}
	return false
}

// AdBlockerError is the tagged error returned across the controller boundary.
// Cause is optional and holds the original gateway failure.
type AdBlockerError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// NewAdBlockerError constructs an AdBlockerError; cause may be nil.
func NewAdBlockerError(kind ErrorKind, message string, cause error) *AdBlockerError {
	return &AdBlockerError{Kind: kind, Message: message, Cause: cause}
}

func (e *AdBlockerError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the original cause to errors.Is / errors.As.
func (e *AdBlockerError) Unwrap() error { return e.Cause }

// Is matches any *AdBlockerError of the same kind, so the sentinels below work
// with errors.Is regardless of message or cause.
func (e *AdBlockerError) Is(target error) bool {
	t, ok := target.(*AdBlockerError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrInitializationFailed    = &AdBlockerError{Kind: KindInitializationFailed}
	ErrNotInitialized          = &AdBlockerError{Kind: KindNotInitialized}
	ErrNativeModuleUnavailable = &AdBlockerError{Kind: KindNativeModuleUnavailable}
	ErrFilterRequestFailed     = &AdBlockerError{Kind: KindFilterRequestFailed}
	ErrEnableFailed            = &AdBlockerError{Kind: KindEnableFailed}
	ErrDisableFailed           = &AdBlockerError{Kind: KindDisableFailed}
	ErrUpdateFiltersFailed     = &AdBlockerError{Kind: KindUpdateFiltersFailed}
	ErrStatusCheckFailed       = &AdBlockerError{Kind: KindStatusCheckFailed}
)

// KindOf extracts the ErrorKind from err when it wraps an *AdBlockerError.
func KindOf(err error) (ErrorKind, bool) {
	var abe *AdBlockerError
	if errors.As(err, &abe) {
		return abe.Kind, true
	}
	return "", false
}

// Canonical messages.
const (
	MsgInitializationFailed = "AdBlocker initialization failed"
	MsgInitializeError      = "Failed to initialize AdBlocker"
	MsgEnableNotInit        = "AdBlocker must be initialized before enabling"
	MsgUpdateNotInit        = "AdBlocker must be initialized before updating filters"
	MsgGetConfigNotInit     = "AdBlocker must be initialized before getting configuration"
	MsgSetConfigNotInit     = "AdBlocker must be initialized before setting configuration"
	MsgEnableFailed         = "Failed to enable ad blocking"
	MsgDisableFailed        = "Failed to disable ad blocking"
	MsgUpdateFailed         = "Failed to update filter lists"
	MsgStatusFailed         = "Failed to get AdBlocker status"
	MsgInvalidURL           = "Invalid URL provided for filtering"
	MsgGatewayUnavailable   = "AdBlocker filtering engine is not available. Make sure the engine gateway is configured."
)
