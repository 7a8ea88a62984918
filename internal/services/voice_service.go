package services

import (
	"bufio"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"wisatachat/internal/logger"
	"wisatachat/pkg/wisatatypes"
)

// VoiceService wraps the speech-recognition capability. The capability may
// be absent; Available is checked once at startup and the voice affordance
// is hidden entirely when it reports false.
//
// The adapter has two states, idle and listening. Transcript updates
// replace the composer text wholesale: each update is the full transcript
// so far, never an append. Recognizer failures return the adapter to idle
// with no transcript; they never crash the session engine.
type VoiceService struct {
	initialized bool

	recognizer wisatatypes.Recognizer
	settings   *SettingsService

	mu         sync.Mutex
	listening  bool
	transcript string
	onUpdate   func(string)
	generation int // invalidates drain goroutines from earlier captures
}

// NewVoiceService creates a VoiceService around the given recognizer, which
// may be nil when the platform has no speech capability.
func NewVoiceService(recognizer wisatatypes.Recognizer) *VoiceService {
	return &VoiceService{recognizer: recognizer}
}

// Name returns the service name "voice" for registration.
func (v *VoiceService) Name() string {
	return "voice"
}

// Initialize resolves the settings service the adapter reads the language
// preference from.
func (v *VoiceService) Initialize() error {
	if v.settings == nil {
		settings, err := GetGlobalSettingsService()
		if err != nil {
			return fmt.Errorf("voice service requires the settings service: %w", err)
		}
		v.settings = settings
	}
	v.initialized = true
	return nil
}

// Available reports whether voice input can be offered at all.
func (v *VoiceService) Available() bool {
	return v.recognizer != nil && v.recognizer.Available()
}

// Listening reports whether a capture is in progress.
func (v *VoiceService) Listening() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.listening
}

// Transcript returns the current transcript snapshot.
func (v *VoiceService) Transcript() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.transcript
}

// OnUpdate registers the composer callback invoked with each transcript
// snapshot. The callback receives the full transcript, replacing whatever
// the composer held.
func (v *VoiceService) OnUpdate(fn func(string)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onUpdate = fn
}

// Start begins continuous capture using the locale mapped from the current
// language preference. Valid only from idle. On recognizer failure the
// adapter stays idle with no transcript.
func (v *VoiceService) Start() error {
	if !v.Available() {
		return fmt.Errorf("speech recognition is not available")
	}

	// Claim the listening state before starting the recognizer so a second
	// concurrent Start fails the guard instead of racing to a double capture.
	v.mu.Lock()
	if v.listening {
		v.mu.Unlock()
		return fmt.Errorf("already listening")
	}
	v.listening = true
	v.generation++
	gen := v.generation
	locale := v.settings.Language().SpeechLocale()
	v.transcript = ""
	v.mu.Unlock()

	updates, err := v.recognizer.Start(locale)
	if err != nil {
		v.mu.Lock()
		if v.generation == gen {
			v.listening = false
		}
		v.mu.Unlock()
		logger.Debug("Speech capture failed to start", "locale", locale, "error", err)
		return fmt.Errorf("failed to start speech capture: %w", err)
	}

	logger.Debug("Speech capture started", "locale", locale)

	go func() {
		for snapshot := range updates {
			v.mu.Lock()
			if v.generation != gen {
				v.mu.Unlock()
				return
			}
			v.transcript = snapshot
			fn := v.onUpdate
			v.mu.Unlock()
			if fn != nil {
				fn(snapshot)
			}
		}
		// Channel closed: the engine stopped on its own (error or end of
		// stream). Surface idle.
		v.mu.Lock()
		if v.generation == gen {
			v.listening = false
		}
		v.mu.Unlock()
	}()

	return nil
}

// Stop ends capture and returns the frozen transcript. Calling Stop while
// idle is a no-op returning "".
func (v *VoiceService) Stop() string {
	v.mu.Lock()
	if !v.listening {
		v.mu.Unlock()
		return ""
	}
	v.listening = false
	v.generation++
	frozen := v.transcript
	v.mu.Unlock()

	v.recognizer.Stop()
	logger.Debug("Speech capture stopped", "transcript_len", len(frozen))
	return frozen
}

// ExecRecognizer adapts an external speech-to-text command to the
// Recognizer interface. The configured command is started with the locale
// as its final argument and must print the full transcript so far on each
// stdout line.
type ExecRecognizer struct {
	command string
	args    []string

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewExecRecognizer creates a recognizer from a command line such as
// "whisper-stream --mic". An empty command line means the capability is
// absent.
func NewExecRecognizer(commandLine string) *ExecRecognizer {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return &ExecRecognizer{}
	}
	return &ExecRecognizer{
		command: fields[0],
		args:    fields[1:],
	}
}

// Available reports whether a command is configured and resolvable.
func (r *ExecRecognizer) Available() bool {
	if r.command == "" {
		return false
	}
	_, err := exec.LookPath(r.command)
	return err == nil
}

// Start launches the transcriber process and streams its stdout lines as
// transcript snapshots. The channel closes when the process exits.
func (r *ExecRecognizer) Start(locale string) (<-chan string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return nil, fmt.Errorf("transcriber already running")
	}

	args := append(append([]string(nil), r.args...), locale)
	cmd := exec.Command(r.command, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open transcriber output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start transcriber: %w", err)
	}
	r.cmd = cmd

	updates := make(chan string, 8)
	go func() {
		defer close(updates)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				updates <- line
			}
		}
		_ = cmd.Wait()
		r.mu.Lock()
		r.cmd = nil
		r.mu.Unlock()
	}()

	return updates, nil
}

// Stop terminates the transcriber process if one is running.
func (r *ExecRecognizer) Stop() {
	r.mu.Lock()
	cmd := r.cmd
	r.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
