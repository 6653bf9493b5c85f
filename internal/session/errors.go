package session

import "errors"

// ErrCallActive is returned by Register when the call already has a live
// session.
var ErrCallActive = errors.New("call already has an active session")

// ErrUnknownCall is returned by ShutdownOne when no session exists for the
// call.
var ErrUnknownCall = errors.New("no active session for call")
