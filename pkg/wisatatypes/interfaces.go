package wisatatypes

import "context"

// Service is the interface all WisataChat services implement for
// registration and lifecycle management.
type Service interface {
	// Name returns the unique service name used for registry lookup.
	Name() string

	// Initialize sets up the service for operation.
	Initialize() error
}

// ChatTransport is the typed boundary to the assistant backend. All four
// operations require a bearer credential; its absence is reported as
// ErrNoCredential without a network call. Implementations classify remote
// failures with the sentinels in errors.go.
type ChatTransport interface {
	// ListSessions fetches the user's session summaries, most recent first.
	ListSessions(ctx context.Context) ([]Session, error)

	// GetMessages fetches the ordered message history of one session.
	GetMessages(ctx context.Context, id SessionID) ([]Message, error)

	// PostTurn submits one question. A zero id asks the backend to open a
	// new session; the id in the result is authoritative either way.
	PostTurn(ctx context.Context, question string, id SessionID, lang Language) (*TurnResult, error)

	// DeleteSession removes a session server-side.
	DeleteSession(ctx context.Context, id SessionID) error
}

// Recognizer abstracts the platform speech-to-text capability. It may be
// absent; Available is the feature check and the voice affordance is hidden
// entirely when it reports false.
type Recognizer interface {
	// Available reports whether the capability can be used at all.
	Available() bool

	// Start begins continuous capture in the given locale. The returned
	// channel delivers cumulative transcript snapshots (each value is the
	// full transcript so far, not a delta) and is closed when capture ends.
	Start(locale string) (<-chan string, error)

	// Stop ends capture. Safe to call when not capturing.
	Stop()
}
