package rpc

import "fmt"

// TimeoutError is returned when a call's deadline expires before a matching
// reply arrives. On UDP, the XID associated with the call is freed for
// reuse once this error is returned.
type TimeoutError struct {
	Program, Version, Procedure uint32
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("rpc: call timed out (program=%d version=%d procedure=%d)", e.Program, e.Version, e.Procedure)
}

// RejectedError reports an RPC-level rejection (RFC 5531 reply_stat ==
// MSG_DENIED): either an RPC version mismatch or an authentication
// failure, neither of which carries procedure results to decode.
type RejectedError struct {
	RejectState uint32
	Mismatch    *MismatchInfo
}

func (e *RejectedError) Error() string {
	if e.RejectState == RejectRPCMismatch && e.Mismatch != nil {
		return fmt.Sprintf("rpc: call rejected: RPC_MISMATCH (server supports versions %d-%d)", e.Mismatch.Low, e.Mismatch.High)
	}
	return "rpc: call rejected: AUTH_ERROR"
}

// AcceptError reports a non-SUCCESS accept_stat: the call reached the
// server's RPC layer but was not dispatched to the procedure (bad program,
// bad version, bad procedure, or garbage arguments).
type AcceptError struct {
	AcceptState uint32
	Mismatch    *MismatchInfo
}

func (e *AcceptError) Error() string {
	switch e.AcceptState {
	case AcceptProgUnavail:
		return "rpc: PROG_UNAVAIL"
	case AcceptProgMismatch:
		if e.Mismatch != nil {
			return fmt.Sprintf("rpc: PROG_MISMATCH (server supports versions %d-%d)", e.Mismatch.Low, e.Mismatch.High)
		}
		return "rpc: PROG_MISMATCH"
	case AcceptProcUnavail:
		return "rpc: PROC_UNAVAIL"
	case AcceptGarbageArgs:
		return "rpc: GARBAGE_ARGS"
	case AcceptSystemErr:
		return "rpc: SYSTEM_ERR"
	default:
		return fmt.Sprintf("rpc: accept_stat %d", e.AcceptState)
	}
}

// AsError converts a non-successful ReplyHeader into the appropriate typed
// error. Returns nil if the reply was fully accepted.
func (h *ReplyHeader) AsError() error {
	if h.Accepted() {
		return nil
	}
	if h.ReplyState == ReplyDenied {
		return &RejectedError{RejectState: h.RejectState, Mismatch: h.Mismatch}
	}
	return &AcceptError{AcceptState: h.AcceptState, Mismatch: h.Mismatch}
}
