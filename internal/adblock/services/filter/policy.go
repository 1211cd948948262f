package filter

import "github.com/haukened/rr-adblock/internal/adblock/domain"

// Operation names a controller operation.
type Operation string

const (
	OpInit                  Operation = "init"
	OpEnable                Operation = "enable"
	OpDisable               Operation = "disable"
	OpToggle                Operation = "toggle"
	OpFilterRequest         Operation = "filterRequest"
	OpIsEnabled             Operation = "isEnabled"
	OpUpdateFilters         Operation = "updateFilters"
	OpGetConfig             Operation = "getConfig"
	OpSetConfig             Operation = "setConfig"
)

// FailureMode is what an operation does when its gateway call fails.
type FailureMode int

const (
	// FailSurface wraps the gateway error in the operation's error kind.
	FailSurface FailureMode = iota
	// FailOpen logs the error and allows the request.
	FailOpen
	// FailNull logs a warning and returns no value.
	FailNull
	// FailPropagate returns the gateway error unchanged.
	FailPropagate
)

// AbsenceMode is what an operation does when the optional gateway capability
// it needs is missing.
type AbsenceMode int

const (
	// AbsenceNotApplicable marks operations backed by the mandatory contract.
	AbsenceNotApplicable AbsenceMode = iota
	// AbsenceNull logs a warning and returns no value.
	AbsenceNull
	// AbsenceSucceed logs a warning and reports success with a zero value.
	AbsenceSucceed
	// AbsenceSurface fails with the operation's error kind and message.
	AbsenceSurface
)

// Policy is one row of the controller's policy table.
type Policy struct {
	RequiresInit   bool
	NotInitMessage string
	OnError        FailureMode
	Kind           domain.ErrorKind
	Message        string
	OnAbsent       AbsenceMode
}

var policies = map[Operation]Policy{
	OpInit: {
		OnError: FailSurface, Kind: domain.KindInitializationFailed, Message: domain.MsgInitializeError,
	},
	OpEnable: {
		RequiresInit: true, NotInitMessage: domain.MsgEnableNotInit,
		OnError: FailSurface, Kind: domain.KindEnableFailed, Message: domain.MsgEnableFailed,
	},
	OpDisable: {
		OnError: FailSurface, Kind: domain.KindDisableFailed, Message: domain.MsgDisableFailed,
	},
	// toggle delegates to enable or disable and returns their error as-is
	OpToggle: {OnError: FailPropagate},
	// the detailed variant goes through this row as well
	OpFilterRequest: {
		OnError: FailOpen,
	},
	OpIsEnabled: {
		OnError: FailSurface, Kind: domain.KindStatusCheckFailed, Message: domain.MsgStatusFailed,
	},
	OpUpdateFilters: {
		RequiresInit: true, NotInitMessage: domain.MsgUpdateNotInit,
		OnError: FailSurface, Kind: domain.KindUpdateFiltersFailed, Message: domain.MsgUpdateFailed,
	},
	OpGetConfig: {
		RequiresInit: true, NotInitMessage: domain.MsgGetConfigNotInit,
		OnError: FailNull, OnAbsent: AbsenceNull,
	},
	OpSetConfig: {
		RequiresInit: true, NotInitMessage: domain.MsgSetConfigNotInit,
		OnError: FailPropagate, OnAbsent: AbsenceSucceed,
	},
}

// mustPolicy is used by the controller for operations known to be in the table.
func mustPolicy(op Operation) Policy {
	p, ok := policies[op]
	if !ok {
		panic("filter: no policy for operation " + string(op))
	}
	return p
}
