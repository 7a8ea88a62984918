package wisatatypes

import "errors"

// Transport failure taxonomy. Every network failure the chat client reports
// wraps exactly one of these sentinels so callers can pick the right
// user-facing message with errors.Is.
var (
	// ErrNoCredential means no bearer credential is present locally. No
	// network call is attempted.
	ErrNoCredential = errors.New("no credential stored")

	// ErrUnauthorized means the backend rejected the credential (expired or
	// invalid token).
	ErrUnauthorized = errors.New("credential rejected by backend")

	// ErrNotFound means the referenced session no longer exists server-side.
	ErrNotFound = errors.New("session not found")

	// ErrUnreachable covers connection failures and server errors; the user
	// is told to try again later.
	ErrUnreachable = errors.New("backend unreachable or failing")
)

// Engine-local sentinels for no-op submit paths. These never produce a
// timeline message.
var (
	// ErrEmptyInput is returned when a turn is submitted with nothing but
	// whitespace.
	ErrEmptyInput = errors.New("empty input")

	// ErrTurnInFlight is returned when a turn is submitted while a previous
	// turn is still awaiting its reply. The submit is a no-op.
	ErrTurnInFlight = errors.New("a turn is already awaiting its reply")
)
