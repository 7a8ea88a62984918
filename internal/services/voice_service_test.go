package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisatachat/pkg/wisatatypes"
)

// mockRecognizer is a scriptable Recognizer for voice adapter tests.
type mockRecognizer struct {
	available  bool
	startErr   error
	lastLocale string
	updates    chan string
	stopped    bool
}

func (m *mockRecognizer) Available() bool { return m.available }

func (m *mockRecognizer) Start(locale string) (<-chan string, error) {
	m.lastLocale = locale
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.updates = make(chan string, 8)
	return m.updates, nil
}

func (m *mockRecognizer) Stop() { m.stopped = true }

func newTestVoiceService(t *testing.T, recognizer wisatatypes.Recognizer) (*VoiceService, *SettingsService) {
	t.Helper()

	settings := newTestSettings(t)
	svc := NewVoiceService(recognizer)
	svc.settings = settings
	svc.initialized = true
	return svc, settings
}

func TestVoiceService_AvailabilityFollowsRecognizer(t *testing.T) {
	svc, _ := newTestVoiceService(t, nil)
	assert.False(t, svc.Available(), "no recognizer means no voice affordance")

	svc, _ = newTestVoiceService(t, &mockRecognizer{available: false})
	assert.False(t, svc.Available())

	svc, _ = newTestVoiceService(t, &mockRecognizer{available: true})
	assert.True(t, svc.Available())
}

func TestVoiceService_StartUsesLanguageLocale(t *testing.T) {
	recognizer := &mockRecognizer{available: true}
	svc, settings := newTestVoiceService(t, recognizer)

	require.NoError(t, svc.Start())
	assert.Equal(t, "id-ID", recognizer.lastLocale)
	svc.Stop()

	// Switching the preference retargets the next capture.
	require.NoError(t, settings.SetLanguage(wisatatypes.LanguageJavanese))
	require.NoError(t, svc.Start())
	assert.Equal(t, "jv-ID", recognizer.lastLocale)
	svc.Stop()

	// Madurese has no recognition locale of its own.
	require.NoError(t, settings.SetLanguage(wisatatypes.LanguageMadurese))
	require.NoError(t, svc.Start())
	assert.Equal(t, "id-ID", recognizer.lastLocale)
}

func TestVoiceService_SnapshotsReplaceNotAppend(t *testing.T) {
	recognizer := &mockRecognizer{available: true}
	svc, _ := newTestVoiceService(t, recognizer)

	var got []string
	svc.OnUpdate(func(s string) { got = append(got, s) })

	require.NoError(t, svc.Start())
	recognizer.updates <- "pantai"
	recognizer.updates <- "pantai papuma"

	require.Eventually(t, func() bool {
		return svc.Transcript() == "pantai papuma"
	}, time.Second, time.Millisecond)

	assert.Equal(t, []string{"pantai", "pantai papuma"}, got)
}

func TestVoiceService_StopFreezesTranscript(t *testing.T) {
	recognizer := &mockRecognizer{available: true}
	svc, _ := newTestVoiceService(t, recognizer)

	require.NoError(t, svc.Start())
	recognizer.updates <- "pantai papuma"
	require.Eventually(t, func() bool {
		return svc.Transcript() == "pantai papuma"
	}, time.Second, time.Millisecond)

	frozen := svc.Stop()
	assert.Equal(t, "pantai papuma", frozen)
	assert.False(t, svc.Listening())
	assert.True(t, recognizer.stopped)

	// A late snapshot from the old capture is dropped.
	recognizer.updates <- "pantai papuma murah"
	close(recognizer.updates)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, "pantai papuma", svc.Transcript())
}

func TestVoiceService_StopWhileIdleIsNoOp(t *testing.T) {
	recognizer := &mockRecognizer{available: true}
	svc, _ := newTestVoiceService(t, recognizer)

	assert.Equal(t, "", svc.Stop())
	assert.False(t, recognizer.stopped)
}

// gatedRecognizer blocks inside Start until released, widening the window
// for concurrent Start calls.
type gatedRecognizer struct {
	gate chan struct{}
}

func (g *gatedRecognizer) Available() bool { return true }

func (g *gatedRecognizer) Start(string) (<-chan string, error) {
	<-g.gate
	return make(chan string), nil
}

func (g *gatedRecognizer) Stop() {}

func TestVoiceService_ConcurrentStartClaimsOnce(t *testing.T) {
	recognizer := &gatedRecognizer{gate: make(chan struct{})}
	svc, _ := newTestVoiceService(t, recognizer)

	const callers = 4
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() { errs <- svc.Start() }()
	}
	close(recognizer.gate)

	started := 0
	for i := 0; i < callers; i++ {
		if err := <-errs; err == nil {
			started++
		}
	}
	assert.Equal(t, 1, started, "only one caller may win the capture")
	assert.True(t, svc.Listening())
}

func TestVoiceService_StartFailureStaysIdle(t *testing.T) {
	recognizer := &mockRecognizer{available: true, startErr: fmt.Errorf("mic busy")}
	svc, _ := newTestVoiceService(t, recognizer)

	err := svc.Start()
	require.Error(t, err)
	assert.False(t, svc.Listening())
	assert.Equal(t, "", svc.Transcript())
}

func TestVoiceService_ChannelCloseReturnsToIdle(t *testing.T) {
	recognizer := &mockRecognizer{available: true}
	svc, _ := newTestVoiceService(t, recognizer)

	require.NoError(t, svc.Start())
	assert.True(t, svc.Listening())

	close(recognizer.updates)
	require.Eventually(t, func() bool {
		return !svc.Listening()
	}, time.Second, time.Millisecond)
}

func TestNewExecRecognizer(t *testing.T) {
	assert.False(t, NewExecRecognizer("").Available(), "empty command line means absent capability")
	assert.False(t, NewExecRecognizer("definitely-not-a-real-binary-xyz").Available())
}
