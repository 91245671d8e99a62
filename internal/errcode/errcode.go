// Package errcode defines the stable error codes shared by every RPC
// response in the discoveryd control plane.
//
// Codes are part of the wire contract (spec §6) and must not be
// renumbered once released; add new codes at the end.
package errcode

// Code is a stable, wire-level error code.
type Code int32

const (
	SUCCESS Code = iota
	NOT_LEADER
	HAVE_NOT_INIT
	INPUT_PARAM_ERROR
	INTERNAL_ERROR
	PARSE_FROM_PB_FAIL
	PARSE_TO_PB_FAIL
	UNKNOWN_REQ_TYPE
	PEER_NOT_EQUAL
	UNAVAILABLE
)

var names = map[Code]string{
	SUCCESS:            "SUCCESS",
	NOT_LEADER:         "NOT_LEADER",
	HAVE_NOT_INIT:      "HAVE_NOT_INIT",
	INPUT_PARAM_ERROR:  "INPUT_PARAM_ERROR",
	INTERNAL_ERROR:     "INTERNAL_ERROR",
	PARSE_FROM_PB_FAIL: "PARSE_FROM_PB_FAIL",
	PARSE_TO_PB_FAIL:   "PARSE_TO_PB_FAIL",
	UNKNOWN_REQ_TYPE:   "UNKNOWN_REQ_TYPE",
	PEER_NOT_EQUAL:     "PEER_NOT_EQUAL",
	UNAVAILABLE:        "UNAVAILABLE",
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// Error is the typed error every manager and RPC handler returns. It
// carries a stable Code plus a human-readable message and, for
// leader-election errors, the current leader's endpoint.
type Error struct {
	Code   Code
	Msg    string
	Leader string // best-effort, only set for NOT_LEADER
}

func (e *Error) Error() string {
	if e.Leader != "" {
		return e.Code.String() + ": " + e.Msg + " (leader=" + e.Leader + ")"
	}
	return e.Code.String() + ": " + e.Msg
}

// New builds an *Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// NotLeader builds a NOT_LEADER error carrying the best-effort leader
// address (may be empty if unknown).
func NotLeader(leader string) *Error {
	return &Error{Code: NOT_LEADER, Msg: "not leader", Leader: leader}
}

// Is allows errors.Is(err, errcode.New(code, "")) to match by code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the Code from an error, defaulting to INTERNAL_ERROR for
// errors that aren't *Error.
func CodeOf(err error) Code {
	if err == nil {
		return SUCCESS
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return INTERNAL_ERROR
}
