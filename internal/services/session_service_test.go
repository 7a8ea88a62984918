package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisatachat/internal/store"
	"wisatachat/pkg/wisatatypes"
)

// mockTransport is a hand-rolled ChatTransport for session store tests.
type mockTransport struct {
	mu        sync.Mutex
	listCalls int
	postCalls int

	sessions  []wisatatypes.Session
	listErr   error
	getFunc   func(ctx context.Context, id wisatatypes.SessionID) ([]wisatatypes.Message, error)
	postFunc  func(ctx context.Context, question string, id wisatatypes.SessionID, lang wisatatypes.Language) (*wisatatypes.TurnResult, error)
	deleteErr error
}

func (m *mockTransport) ListSessions(_ context.Context) ([]wisatatypes.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]wisatatypes.Session(nil), m.sessions...), nil
}

func (m *mockTransport) GetMessages(ctx context.Context, id wisatatypes.SessionID) ([]wisatatypes.Message, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockTransport) PostTurn(ctx context.Context, question string, id wisatatypes.SessionID, lang wisatatypes.Language) (*wisatatypes.TurnResult, error) {
	m.mu.Lock()
	m.postCalls++
	m.mu.Unlock()
	if m.postFunc != nil {
		return m.postFunc(ctx, question, id, lang)
	}
	return &wisatatypes.TurnResult{Answer: "ok", SessionID: id}, nil
}

func (m *mockTransport) DeleteSession(_ context.Context, _ wisatatypes.SessionID) error {
	return m.deleteErr
}

func (m *mockTransport) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func (m *mockTransport) PostCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.postCalls
}

// newTestSettings returns an initialized settings service backed by a temp
// store, with a credential already present.
func newTestSettings(t *testing.T) *SettingsService {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)

	settings := NewSettingsService(st)
	require.NoError(t, settings.Initialize())
	require.NoError(t, settings.SetCredential("test-token", wisatatypes.UserProfile{Username: "tester"}))
	return settings
}

// newTestSessionService wires a session service to a mock transport without
// going through the global registry.
func newTestSessionService(t *testing.T, transport *mockTransport) (*SessionService, *SettingsService) {
	t.Helper()

	settings := newTestSettings(t)
	svc := NewSessionService()
	svc.settings = settings
	svc.transport = transport
	svc.initialized = true
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) }
	svc.StartNewSession()
	return svc, settings
}

func TestSessionService_StartNewSessionSeedsGreeting(t *testing.T) {
	svc, _ := newTestSessionService(t, &mockTransport{})

	assert.True(t, svc.ActiveID().IsZero())
	timeline := svc.Timeline()
	require.Len(t, timeline, 1)
	assert.Equal(t, wisatatypes.SenderAssistant, timeline[0].Sender)
	assert.Contains(t, timeline[0].Text, "Cak Jember")
	assert.Equal(t, "09:30", timeline[0].Timestamp)
}

func TestSessionService_SendTurn_AppendsUserThenAssistant(t *testing.T) {
	transport := &mockTransport{
		postFunc: func(_ context.Context, _ string, id wisatatypes.SessionID, _ wisatatypes.Language) (*wisatatypes.TurnResult, error) {
			return &wisatatypes.TurnResult{Answer: "Pantai Papuma", SessionID: "s1"}, nil
		},
	}
	svc, _ := newTestSessionService(t, transport)
	before := len(svc.Timeline())

	reply, err := svc.SendTurn(context.Background(), "Pantai apa yang murah?")
	require.NoError(t, err)
	require.NotNil(t, reply)

	timeline := svc.Timeline()
	// Exactly one user message and one assistant message per completed turn.
	require.Len(t, timeline, before+2)
	assert.Equal(t, wisatatypes.SenderUser, timeline[before].Sender)
	assert.Equal(t, "Pantai apa yang murah?", timeline[before].Text)
	assert.Equal(t, wisatatypes.SenderAssistant, timeline[before+1].Sender)
	assert.Equal(t, "Pantai Papuma", timeline[before+1].Text)
	assert.False(t, timeline[before+1].IsError)
}

func TestSessionService_SendTurn_FirstTurnBindsSessionAndRefreshesList(t *testing.T) {
	transport := &mockTransport{
		sessions: []wisatatypes.Session{{ID: "s1", Title: "Pantai apa yang murah?"}},
		postFunc: func(_ context.Context, _ string, id wisatatypes.SessionID, _ wisatatypes.Language) (*wisatatypes.TurnResult, error) {
			assert.True(t, id.IsZero(), "first turn must carry the unsaved sentinel")
			return &wisatatypes.TurnResult{Answer: "Pantai Papuma", SessionID: "s1"}, nil
		},
	}
	svc, _ := newTestSessionService(t, transport)

	_, err := svc.SendTurn(context.Background(), "Pantai apa yang murah?")
	require.NoError(t, err)

	assert.Equal(t, wisatatypes.SessionID("s1"), svc.ActiveID())
	assert.Equal(t, 1, transport.ListCalls(), "binding a new session refreshes the list exactly once")
	require.Len(t, svc.Timeline(), 3) // greeting + user + assistant
	assert.Equal(t, "s1", string(svc.Sessions()[0].ID))
}

func TestSessionService_SendTurn_NoCredentialShortCircuits(t *testing.T) {
	transport := &mockTransport{}
	svc, settings := newTestSessionService(t, transport)
	require.NoError(t, settings.ClearCredential())
	before := len(svc.Timeline())

	reply, err := svc.SendTurn(context.Background(), "halo")
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.True(t, reply.IsError)

	// One error message, no network call.
	assert.Len(t, svc.Timeline(), before+1)
	assert.Equal(t, 0, transport.PostCalls())
}

func TestSessionService_SendTurn_EmptyInputIsNoOp(t *testing.T) {
	transport := &mockTransport{}
	svc, _ := newTestSessionService(t, transport)
	before := len(svc.Timeline())

	_, err := svc.SendTurn(context.Background(), "   ")
	assert.ErrorIs(t, err, wisatatypes.ErrEmptyInput)
	assert.Len(t, svc.Timeline(), before)
	assert.Equal(t, 0, transport.PostCalls())
}

func TestSessionService_SendTurn_WhileAwaitingIsNoOp(t *testing.T) {
	release := make(chan struct{})
	transport := &mockTransport{
		postFunc: func(_ context.Context, _ string, id wisatatypes.SessionID, _ wisatatypes.Language) (*wisatatypes.TurnResult, error) {
			<-release
			return &wisatatypes.TurnResult{Answer: "ok", SessionID: "s1"}, nil
		},
	}
	svc, _ := newTestSessionService(t, transport)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.SendTurn(context.Background(), "pertanyaan pertama")
	}()

	// Wait for the first turn to enter awaitingReply.
	require.Eventually(t, svc.Composing, time.Second, time.Millisecond)
	lenDuring := len(svc.Timeline())

	_, err := svc.SendTurn(context.Background(), "pertanyaan kedua")
	assert.ErrorIs(t, err, wisatatypes.ErrTurnInFlight)
	assert.Len(t, svc.Timeline(), lenDuring, "no-op submit must not touch the timeline")

	close(release)
	<-done

	assert.Equal(t, 1, transport.PostCalls(), "no second network call may be issued")
	assert.False(t, svc.Composing())
}

func TestSessionService_SendTurn_UnauthorizedAndGenericErrorsDiffer(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"unauthorized", wisatatypes.ErrUnauthorized},
		{"unreachable", wisatatypes.ErrUnreachable},
	}

	texts := make(map[string]string)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transport := &mockTransport{
				postFunc: func(_ context.Context, _ string, _ wisatatypes.SessionID, _ wisatatypes.Language) (*wisatatypes.TurnResult, error) {
					return nil, tc.err
				},
			}
			svc, _ := newTestSessionService(t, transport)

			reply, err := svc.SendTurn(context.Background(), "halo")
			require.NoError(t, err)
			require.NotNil(t, reply)
			assert.True(t, reply.IsError)
			assert.False(t, svc.Composing(), "the state machine must land back in idle")
			texts[tc.name] = reply.Text
		})
	}

	assert.NotEqual(t, texts["unauthorized"], texts["unreachable"],
		"credential failures must read differently from server failures")
}

func TestSessionService_SendTurn_UsesCurrentLanguage(t *testing.T) {
	var seen wisatatypes.Language
	transport := &mockTransport{
		postFunc: func(_ context.Context, _ string, _ wisatatypes.SessionID, lang wisatatypes.Language) (*wisatatypes.TurnResult, error) {
			seen = lang
			return &wisatatypes.TurnResult{Answer: "nggih", SessionID: "s1"}, nil
		},
	}
	svc, settings := newTestSessionService(t, transport)
	require.NoError(t, settings.SetLanguage(wisatatypes.LanguageJavanese))

	_, err := svc.SendTurn(context.Background(), "wonten pantai nopo?")
	require.NoError(t, err)
	assert.Equal(t, wisatatypes.LanguageJavanese, seen)
}

func TestSessionService_SelectSession_DiscardsStaleFetch(t *testing.T) {
	releaseA := make(chan struct{})
	transport := &mockTransport{
		getFunc: func(_ context.Context, id wisatatypes.SessionID) ([]wisatatypes.Message, error) {
			if id == "A" {
				<-releaseA
				return []wisatatypes.Message{{Sender: wisatatypes.SenderUser, Text: "from A"}}, nil
			}
			return []wisatatypes.Message{{Sender: wisatatypes.SenderUser, Text: "from B"}}, nil
		},
	}
	svc, _ := newTestSessionService(t, transport)

	doneA := make(chan struct{})
	go func() {
		defer close(doneA)
		svc.SelectSession(context.Background(), "A")
	}()

	svc.SelectSession(context.Background(), "B")
	require.Len(t, svc.Timeline(), 1)
	assert.Equal(t, "from B", svc.Timeline()[0].Text)

	// A's fetch resolves after B was selected: it must be discarded.
	close(releaseA)
	<-doneA

	timeline := svc.Timeline()
	require.Len(t, timeline, 1)
	assert.Equal(t, "from B", timeline[0].Text)
	assert.Equal(t, wisatatypes.SessionID("B"), svc.ActiveID())
}

func TestSessionService_SelectSession_FetchFailureLeavesTimelineEmpty(t *testing.T) {
	transport := &mockTransport{
		getFunc: func(_ context.Context, _ wisatatypes.SessionID) ([]wisatatypes.Message, error) {
			return nil, wisatatypes.ErrUnreachable
		},
	}
	svc, _ := newTestSessionService(t, transport)

	svc.SelectSession(context.Background(), "s9")
	assert.Empty(t, svc.Timeline(), "history failures are silent, no error bubble")
	assert.Equal(t, wisatatypes.SessionID("s9"), svc.ActiveID())
}

func TestSessionService_SendTurn_ReplyForAbandonedSessionIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	transport := &mockTransport{
		postFunc: func(_ context.Context, _ string, _ wisatatypes.SessionID, _ wisatatypes.Language) (*wisatatypes.TurnResult, error) {
			<-release
			return &wisatatypes.TurnResult{Answer: "too late", SessionID: "A"}, nil
		},
		getFunc: func(_ context.Context, _ wisatatypes.SessionID) ([]wisatatypes.Message, error) {
			return nil, nil
		},
	}
	svc, _ := newTestSessionService(t, transport)
	svc.SelectSession(context.Background(), "A")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.SendTurn(context.Background(), "halo")
	}()
	require.Eventually(t, svc.Composing, time.Second, time.Millisecond)

	svc.SelectSession(context.Background(), "B")
	close(release)
	<-done

	for _, msg := range svc.Timeline() {
		assert.NotEqual(t, "too late", msg.Text, "reply for session A must not land in session B")
	}
	assert.False(t, svc.Composing())
}

func TestSessionService_DeleteActiveSessionResetsToNew(t *testing.T) {
	transport := &mockTransport{
		getFunc: func(_ context.Context, _ wisatatypes.SessionID) ([]wisatatypes.Message, error) {
			return []wisatatypes.Message{{Sender: wisatatypes.SenderUser, Text: "old"}}, nil
		},
	}
	svc, _ := newTestSessionService(t, transport)
	svc.sessions = []wisatatypes.Session{{ID: "s1", Title: "lama"}}
	svc.SelectSession(context.Background(), "s1")

	require.NoError(t, svc.DeleteSession(context.Background(), "s1"))

	assert.Empty(t, svc.Sessions())
	assert.True(t, svc.ActiveID().IsZero())
	timeline := svc.Timeline()
	require.Len(t, timeline, 1, "deleting the active session reseeds the greeting")
	assert.Equal(t, wisatatypes.SenderAssistant, timeline[0].Sender)
}

func TestSessionService_DeleteFailureLeavesListUnchanged(t *testing.T) {
	transport := &mockTransport{deleteErr: wisatatypes.ErrNotFound}
	svc, _ := newTestSessionService(t, transport)
	svc.sessions = []wisatatypes.Session{{ID: "s1"}, {ID: "s2"}}

	err := svc.DeleteSession(context.Background(), "s1")
	assert.ErrorIs(t, err, wisatatypes.ErrNotFound)
	assert.Len(t, svc.Sessions(), 2)
}

func TestSessionService_ListSessionsFailsSoft(t *testing.T) {
	transport := &mockTransport{listErr: wisatatypes.ErrNoCredential}
	svc, _ := newTestSessionService(t, transport)
	svc.sessions = []wisatatypes.Session{{ID: "cached"}}

	svc.ListSessions(context.Background())
	assert.Len(t, svc.Sessions(), 1, "a failed refresh leaves the cached list as-is")
}
