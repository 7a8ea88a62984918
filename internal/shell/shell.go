// Package shell implements the interactive chat surface: an ishell REPL
// where free text becomes a conversation turn and backslash commands manage
// sessions, language, and voice input.
package shell

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abiosoft/ishell/v2"
	"github.com/charmbracelet/lipgloss"

	"wisatachat/internal/logger"
	"wisatachat/internal/services"
	"wisatachat/internal/store"
	"wisatachat/pkg/wisatatypes"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("35"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	chipStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	cardTitleStyle = lipgloss.NewStyle().Bold(true)
)

// Config carries the startup configuration for the interactive shell.
type Config struct {
	StorePath    string // Durable store file; empty means the default path
	APIBaseURL   string // Assistant backend base URL
	VoiceCommand string // External transcriber command line; empty disables voice
}

// InitializeServices constructs and registers all engine services and
// initializes them. It is called once before the REPL (or any subcommand
// that talks to the backend) runs.
func InitializeServices(cfg Config) error {
	storePath := cfg.StorePath
	if storePath == "" {
		var err error
		storePath, err = store.DefaultPath()
		if err != nil {
			return err
		}
	}

	st, err := store.Open(storePath)
	if err != nil {
		return fmt.Errorf("failed to open settings store: %w", err)
	}

	registry := services.GetGlobalRegistry()
	toRegister := []wisatatypes.Service{
		services.NewSettingsService(st),
		services.NewChatClient(services.ChatClientConfig{BaseURL: cfg.APIBaseURL}),
		services.NewSessionService(),
		services.NewRenderService(),
		services.NewVoiceService(services.NewExecRecognizer(cfg.VoiceCommand)),
	}
	for _, svc := range toRegister {
		if err := registry.RegisterService(svc); err != nil {
			return err
		}
	}

	return registry.InitializeAll()
}

// Run starts the interactive chat shell and blocks until the user exits.
func Run(version string) error {
	sessions, err := services.GetGlobalSessionService()
	if err != nil {
		return err
	}
	settings, err := services.GetGlobalSettingsService()
	if err != nil {
		return err
	}
	voice, err := services.GetGlobalVoiceService()
	if err != nil {
		return err
	}

	sh := ishell.New()
	sh.SetPrompt("wisata> ")

	sh.Println(fmt.Sprintf("WisataChat v%s - asisten wisata Jember", version))
	if profile := settings.Profile(); profile.Username != "" {
		sh.Println(mutedStyle.Render("Login sebagai " + profile.Username))
	}
	sh.Println("Ketik pertanyaanmu, atau 'help' untuk daftar perintah.")

	addCommands(sh, voice.Available())

	// Anything that is not a command is a conversation turn.
	sh.NotFound(processInput)

	// Warm the session list; fails soft without a credential.
	sessions.ListSessions(context.Background())
	repaintTimeline(sh)

	sh.Run()
	return nil
}

// processInput handles free-text input: it submits one turn and prints the
// reply. Submitting implicitly stops a running voice capture.
func processInput(c *ishell.Context) {
	if voice, err := services.GetGlobalVoiceService(); err == nil && voice.Listening() {
		voice.Stop()
	}
	submitTurn(c, strings.Join(c.RawArgs, " "))
}

// submitTurn runs one conversation turn for typed or voice-transcribed text
// and prints the reply.
func submitTurn(c *ishell.Context, text string) {
	sessions, err := services.GetGlobalSessionService()
	if err != nil {
		c.Println(errorStyle.Render(err.Error()))
		return
	}

	c.ProgressBar().Indeterminate(true)
	c.ProgressBar().Start()
	reply, err := sessions.SendTurn(context.Background(), text)
	c.ProgressBar().Stop()

	switch {
	case err == wisatatypes.ErrEmptyInput:
		return
	case err == wisatatypes.ErrTurnInFlight:
		c.Println(mutedStyle.Render("Sabar ya, jawaban sebelumnya masih diproses..."))
		return
	case err != nil:
		logger.Error("Turn failed unexpectedly", "error", err)
		return
	case reply == nil:
		return
	}

	printMessage(c, *reply)
}

// repaintTimeline prints the current timeline, greeting included.
func repaintTimeline(sh *ishell.Shell) {
	sessions, err := services.GetGlobalSessionService()
	if err != nil {
		return
	}
	for _, msg := range sessions.Timeline() {
		printMessageTo(sh.Println, msg)
	}
}

// printMessage renders one message to an ishell context.
func printMessage(c *ishell.Context, msg wisatatypes.Message) {
	printMessageTo(c.Println, msg)
}

// printMessageTo renders one message: the sender header, then for assistant
// replies the composed display tree (body blocks, citation chips, and
// recommendation cards) materialized for the terminal.
func printMessageTo(println func(...interface{}), msg wisatatypes.Message) {
	header := assistantStyle.Render("Cak Jember")
	if msg.Sender == wisatatypes.SenderUser {
		header = userStyle.Render("Kamu")
	}
	println(header + " " + mutedStyle.Render(msg.Timestamp))

	if msg.IsError {
		println(errorStyle.Render(msg.Text))
		return
	}
	if msg.Sender != wisatatypes.SenderAssistant {
		println(msg.Text)
		return
	}

	render, err := services.GetGlobalRenderService()
	if err != nil {
		println(msg.Text)
		return
	}

	view := render.Compose(msg.Text, msg.Sources, msg.Recommendations)
	println(render.RenderView(view))

	if len(view.Sources) > 0 {
		println(chipStyle.Render("Sumber: " + strings.Join(view.Sources, " · ")))
	}

	cards := services.ShuffleCards(view.Cards, time.Now().UnixNano())
	if len(cards) > 0 {
		println(mutedStyle.Render("✨ Rekomendasi pilihan:"))
		for _, card := range cards {
			println("  " + cardTitleStyle.Render(card.Name) + mutedStyle.Render(" ["+card.Category+"]"))
			println(mutedStyle.Render("  📍 " + card.Address + "  →  " + card.DetailPath()))
		}
	}
}
