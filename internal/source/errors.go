package source

import "errors"

var (
	// ErrSourceUnavailable means the server session could not be reached.
	ErrSourceUnavailable = errors.New("source: unavailable")
	// ErrSourceTimeout means the session did not answer within the window.
	ErrSourceTimeout = errors.New("source: timeout")
	// ErrParse means the source answered but its output was unusable.
	ErrParse = errors.New("source: parse failed")

	// ErrAuth means credentials are missing or were rejected. Callers
	// should stop polling until credentials are reconfigured.
	ErrAuth = errors.New("source: authentication failed")
	// ErrRateLimited signals the caller to back off before retrying.
	ErrRateLimited = errors.New("source: rate limited")
	// ErrNetwork is a transient transport failure; retry next tick.
	ErrNetwork = errors.New("source: network error")
)
