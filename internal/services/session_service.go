package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"wisatachat/internal/logger"
	"wisatachat/pkg/wisatatypes"
)

// User-facing texts appended to the timeline by the turn state machine.
// Failure causes stay distinguishable: credential problems tell the user to
// log in again, everything else says try later.
const (
	greetingText = "Halo! 👋 Saya Cak Jember. Mau cari wisata apa hari ini? " +
		"Atau butuh rekomendasi tempat di Jember?"
	noCredentialText = "Oops! Kamu belum login. Silakan login dulu ya."
	unauthorizedText = "❌ Sesi login kamu sudah kedaluwarsa. Silakan login ulang."
	unreachableText  = "Waduh, sori banget! Server lagi pusing nih 😵 Coba tanya lagi nanti ya."
)

// SessionService is the single source of truth for which session is active
// and for the ordered collection of known sessions. Exactly one timeline is
// materialized at a time, owned here and indexed by the active session id
// (or the unsaved sentinel).
//
// Every in-flight fetch is tagged with the session id it targets; results
// arriving after the user has switched away are discarded instead of being
// misapplied to the new timeline.
type SessionService struct {
	initialized bool

	transport wisatatypes.ChatTransport
	settings  *SettingsService

	mu       sync.Mutex
	sessions []wisatatypes.Session
	activeID wisatatypes.SessionID
	timeline []wisatatypes.Message
	awaiting bool // one outstanding turn at most

	now func() time.Time
}

// NewSessionService creates a new SessionService instance.
func NewSessionService() *SessionService {
	return &SessionService{
		now: time.Now,
	}
}

// Name returns the service name "session" for registration.
func (s *SessionService) Name() string {
	return "session"
}

// Initialize resolves collaborators from the registry and seeds the unsaved
// session with its greeting.
func (s *SessionService) Initialize() error {
	if s.settings == nil {
		settings, err := GetGlobalSettingsService()
		if err != nil {
			return fmt.Errorf("session service requires the settings service: %w", err)
		}
		s.settings = settings
	}
	if s.transport == nil {
		client, err := GetGlobalChatClient()
		if err != nil {
			return fmt.Errorf("session service requires the chat client: %w", err)
		}
		s.transport = client
	}

	s.initialized = true
	s.StartNewSession()
	return nil
}

// Sessions returns a copy of the known session list, most recent first as
// returned by the backend.
func (s *SessionService) Sessions() []wisatatypes.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wisatatypes.Session(nil), s.sessions...)
}

// ActiveID returns the active session id; the zero value is the unsaved
// sentinel.
func (s *SessionService) ActiveID() wisatatypes.SessionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Timeline returns a copy of the materialized timeline.
func (s *SessionService) Timeline() []wisatatypes.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wisatatypes.Message(nil), s.timeline...)
}

// Composing reports whether a turn is awaiting its reply. This is the
// transient indicator flag, not a timeline message.
func (s *SessionService) Composing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting
}

// ListSessions refreshes the known session list from the backend. It fails
// soft: with no credential or any transport failure the list is left as-is
// and the error is only logged.
func (s *SessionService) ListSessions(ctx context.Context) {
	sessions, err := s.transport.ListSessions(ctx)
	if err != nil {
		logger.Debug("Session list refresh failed", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = sessions
}

// SelectSession makes id the active session, clears the timeline, and
// replays the session's history. A fetch failure leaves the timeline empty
// with no error bubble; a fetch that resolves after the user switched away
// is discarded.
func (s *SessionService) SelectSession(ctx context.Context, id wisatatypes.SessionID) {
	s.mu.Lock()
	s.activeID = id
	s.timeline = nil
	s.mu.Unlock()

	messages, err := s.transport.GetMessages(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID != id {
		logger.Debug("Discarding stale history fetch", "session", id, "active", s.activeID)
		return
	}
	if err != nil {
		logger.Debug("History fetch failed", "session", id, "error", err)
		return
	}
	s.timeline = messages
}

// StartNewSession points the store at the unsaved sentinel and resets the
// timeline to the seeded greeting. It never touches the network.
func (s *SessionService) StartNewSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeID = ""
	s.timeline = []wisatatypes.Message{{
		ID:        uuid.NewString(),
		Sender:    wisatatypes.SenderAssistant,
		Text:      greetingText,
		Timestamp: wisatatypes.DisplayClock(s.now()),
	}}
}

// DeleteSession removes a session. Confirmation is the caller's concern. On
// success the session leaves the known list, and deleting the active session
// falls back to a fresh unsaved session. On failure nothing changes.
func (s *SessionService) DeleteSession(ctx context.Context, id wisatatypes.SessionID) error {
	if err := s.transport.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.mu.Lock()
	kept := s.sessions[:0]
	for _, session := range s.sessions {
		if session.ID != id {
			kept = append(kept, session)
		}
	}
	s.sessions = kept
	wasActive := s.activeID == id
	s.mu.Unlock()

	if wasActive {
		s.StartNewSession()
	}
	return nil
}

// SendTurn runs one turn of the conversation state machine:
//
//	idle → optimistic user append → awaitingReply → assistant/error append → idle
//
// The optimistic user message is appended before any network activity. With
// no credential present the turn short-circuits to an error message without
// a network call. Submitting while a turn is awaiting its reply is a no-op
// reported as ErrTurnInFlight. The returned message is whatever the turn
// appended last (assistant reply or error bubble).
func (s *SessionService) SendTurn(ctx context.Context, text string) (*wisatatypes.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, wisatatypes.ErrEmptyInput
	}

	s.mu.Lock()
	if s.awaiting {
		s.mu.Unlock()
		return nil, wisatatypes.ErrTurnInFlight
	}

	if !s.settings.HasCredential() {
		msg := s.appendLocked(wisatatypes.Message{
			Sender:  wisatatypes.SenderAssistant,
			Text:    noCredentialText,
			IsError: true,
		})
		s.mu.Unlock()
		return msg, nil
	}

	s.appendLocked(wisatatypes.Message{
		Sender: wisatatypes.SenderUser,
		Text:   text,
	})
	s.awaiting = true
	target := s.activeID
	language := s.settings.Language()
	s.mu.Unlock()

	result, err := s.transport.PostTurn(ctx, text, target, language)

	s.mu.Lock()
	s.awaiting = false

	if s.activeID != target {
		// The user switched sessions while the turn was in flight; the
		// reply belongs to a timeline that no longer exists.
		s.mu.Unlock()
		logger.Debug("Discarding reply for abandoned session", "session", target)
		return nil, nil
	}

	if err != nil {
		msg := s.appendLocked(wisatatypes.Message{
			Sender:  wisatatypes.SenderAssistant,
			Text:    turnErrorText(err),
			IsError: true,
		})
		s.mu.Unlock()
		return msg, nil
	}

	bound := false
	if target.IsZero() && !result.SessionID.IsZero() {
		s.activeID = result.SessionID
		bound = true
	}
	msg := s.appendLocked(wisatatypes.Message{
		Sender:          wisatatypes.SenderAssistant,
		Text:            result.Answer,
		Sources:         result.Sources,
		Recommendations: result.Recommendations,
	})
	s.mu.Unlock()

	if bound {
		logger.Debug("Session bound", "session", result.SessionID)
		s.ListSessions(ctx)
	}
	return msg, nil
}

// appendLocked appends a message stamped with an id and display time and
// returns a copy of it. Caller must hold s.mu.
func (s *SessionService) appendLocked(msg wisatatypes.Message) *wisatatypes.Message {
	msg.ID = uuid.NewString()
	msg.Timestamp = wisatatypes.DisplayClock(s.now())
	s.timeline = append(s.timeline, msg)
	return &msg
}

// turnErrorText maps a classified transport failure to its user-facing
// message.
func turnErrorText(err error) string {
	switch {
	case errors.Is(err, wisatatypes.ErrUnauthorized):
		return unauthorizedText
	case errors.Is(err, wisatatypes.ErrNoCredential):
		return noCredentialText
	default:
		return unreachableText
	}
}
