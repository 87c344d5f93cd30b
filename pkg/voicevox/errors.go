package voicevox

import "errors"

// Failure taxonomy for every engine call. Transport-level failures wrap
// ErrEngineUnavailable; non-2xx engine responses wrap ErrEngineRejected.
var (
	ErrEngineUnavailable = errors.New("voicevox engine is unavailable")
	ErrEngineRejected    = errors.New("voicevox engine rejected the request")
)
