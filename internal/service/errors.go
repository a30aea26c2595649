package service

import "errors"

// Domain errors surfaced by the session engine. Handlers map these onto the
// wire contract; anything else is an internal error.
var (
	// ErrInvalidSession covers missing, expired, and mismatched sessions and
	// part tokens alike. It is deliberately not disambiguated further so a
	// caller cannot probe for other identities' sessions.
	ErrInvalidSession = errors.New("invalid exam session")

	// ErrSessionOver marks an attempt to mutate a finished or disqualified
	// session. Distinct from ErrInvalidSession so the caller can redirect to
	// the result instead of restarting.
	ErrSessionOver = errors.New("exam session is already over")

	// ErrWrongPart rejects out-of-order part access; only forward progress
	// through part completion is allowed.
	ErrWrongPart = errors.New("part does not match session progress")

	// ErrSystemBusy is returned after deadlock retries are exhausted. The
	// whole batch is safe to retry.
	ErrSystemBusy = errors.New("system busy, retry the request")

	// ErrResultNotReady rejects result reads for sessions that have not
	// finished.
	ErrResultNotReady = errors.New("result not available")

	// ErrFormatUnavailable means no format rows exist for the requested
	// variant (only possible for custom variants without event rows).
	ErrFormatUnavailable = errors.New("exam format unavailable")
)
