package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell/v2"

	"wisatachat/internal/services"
	"wisatachat/pkg/wisatatypes"
)

// addCommands registers the REPL commands. The voice command is only added
// when the speech capability exists: the affordance is removed, not
// degraded.
func addCommands(sh *ishell.Shell, voiceAvailable bool) {
	sh.AddCmd(&ishell.Cmd{
		Name: "new",
		Help: "mulai percakapan baru",
		Func: cmdNew,
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "sessions",
		Help: "tampilkan riwayat percakapan",
		Func: cmdSessions,
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "open",
		Help: "open <nomor> - buka percakapan dari riwayat",
		Func: cmdOpen,
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "delete",
		Help: "delete <nomor> - hapus percakapan",
		Func: cmdDelete,
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "lang",
		Help: "lang <id|jowo|madura> - ganti bahasa",
		Func: cmdLang,
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "copy",
		Help: "salin jawaban terakhir ke clipboard",
		Func: cmdCopy,
	})
	if voiceAvailable {
		sh.AddCmd(&ishell.Cmd{
			Name: "voice",
			Help: "mulai/berhenti input suara",
			Func: cmdVoice,
		})
	}
}

func cmdNew(c *ishell.Context) {
	sessions, err := services.GetGlobalSessionService()
	if err != nil {
		c.Println(errorStyle.Render(err.Error()))
		return
	}
	sessions.StartNewSession()
	for _, msg := range sessions.Timeline() {
		printMessage(c, msg)
	}
}

func cmdSessions(c *ishell.Context) {
	sessions, err := services.GetGlobalSessionService()
	if err != nil {
		c.Println(errorStyle.Render(err.Error()))
		return
	}

	sessions.ListSessions(context.Background())
	list := sessions.Sessions()
	if len(list) == 0 {
		c.Println(mutedStyle.Render("Belum ada riwayat chat."))
		return
	}

	active := sessions.ActiveID()
	for i, session := range list {
		marker := "  "
		if session.ID == active {
			marker = "* "
		}
		c.Printf("%s%2d. %s %s\n", marker, i+1, session.Title,
			mutedStyle.Render(session.CreatedAt.Format("2 Jan 15:04")))
	}
}

// sessionAt resolves a 1-based list index argument to a session.
func sessionAt(c *ishell.Context) (*wisatatypes.Session, *services.SessionService, bool) {
	sessions, err := services.GetGlobalSessionService()
	if err != nil {
		c.Println(errorStyle.Render(err.Error()))
		return nil, nil, false
	}
	if len(c.Args) != 1 {
		c.Println(mutedStyle.Render("Pakai nomor dari daftar 'sessions', contoh: open 2"))
		return nil, nil, false
	}

	var index int
	if _, err := fmt.Sscanf(c.Args[0], "%d", &index); err != nil {
		c.Println(mutedStyle.Render("Nomor tidak dikenal: " + c.Args[0]))
		return nil, nil, false
	}
	list := sessions.Sessions()
	if index < 1 || index > len(list) {
		c.Printf("Nomor harus 1..%d\n", len(list))
		return nil, nil, false
	}
	return &list[index-1], sessions, true
}

func cmdOpen(c *ishell.Context) {
	session, sessions, ok := sessionAt(c)
	if !ok {
		return
	}

	// Switching implicitly cancels a running voice capture.
	if voice, err := services.GetGlobalVoiceService(); err == nil && voice.Listening() {
		voice.Stop()
	}

	sessions.SelectSession(context.Background(), session.ID)
	timeline := sessions.Timeline()
	if len(timeline) == 0 {
		c.Println(mutedStyle.Render("(riwayat kosong)"))
		return
	}
	for _, msg := range timeline {
		printMessage(c, msg)
	}
}

func cmdDelete(c *ishell.Context) {
	session, sessions, ok := sessionAt(c)
	if !ok {
		return
	}

	c.Printf("Yakin mau hapus \"%s\"? (y/N) ", session.Title)
	answer := strings.ToLower(strings.TrimSpace(c.ReadLine()))
	if answer != "y" && answer != "ya" {
		c.Println(mutedStyle.Render("Batal."))
		return
	}

	wasActive := sessions.ActiveID() == session.ID
	if err := sessions.DeleteSession(context.Background(), session.ID); err != nil {
		c.Println(errorStyle.Render("Gagal menghapus percakapan: " + err.Error()))
		return
	}
	c.Println(mutedStyle.Render("Percakapan dihapus."))
	if wasActive {
		for _, msg := range sessions.Timeline() {
			printMessage(c, msg)
		}
	}
}

func cmdLang(c *ishell.Context) {
	settings, err := services.GetGlobalSettingsService()
	if err != nil {
		c.Println(errorStyle.Render(err.Error()))
		return
	}

	if len(c.Args) == 0 {
		current := settings.Language()
		c.Printf("Bahasa sekarang: %s (%s)\n", current, current.DisplayName())
		return
	}

	lang := wisatatypes.Language(strings.ToLower(c.Args[0]))
	if err := settings.SetLanguage(lang); err != nil {
		c.Println(errorStyle.Render("Pilihan bahasa: id, jowo, madura"))
		return
	}
	c.Printf("Bahasa diganti ke %s.\n", lang.DisplayName())
}

func cmdCopy(c *ishell.Context) {
	sessions, err := services.GetGlobalSessionService()
	if err != nil {
		c.Println(errorStyle.Render(err.Error()))
		return
	}

	var last string
	for _, msg := range sessions.Timeline() {
		if msg.Sender == wisatatypes.SenderAssistant && !msg.IsError {
			last = msg.Text
		}
	}
	if last == "" {
		c.Println(mutedStyle.Render("Belum ada jawaban untuk disalin."))
		return
	}

	if !clipboardAvailable {
		c.Println(mutedStyle.Render("Clipboard tidak tersedia di platform ini."))
		return
	}
	if err := initClipboard(); err != nil {
		c.Println(errorStyle.Render("Clipboard tidak bisa dipakai: " + err.Error()))
		return
	}
	if err := writeToClipboard(last); err != nil {
		c.Println(errorStyle.Render("Gagal menyalin: " + err.Error()))
		return
	}
	c.Println(mutedStyle.Render("Jawaban terakhir disalin."))
}

// acceptTranscript interprets the send-confirmation answer for a frozen
// transcript. Enter alone counts as yes.
func acceptTranscript(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "", "y", "ya":
		return true
	}
	return false
}

func cmdVoice(c *ishell.Context) {
	voice, err := services.GetGlobalVoiceService()
	if err != nil {
		c.Println(errorStyle.Render(err.Error()))
		return
	}

	if voice.Listening() {
		transcript := voice.Stop()
		if transcript == "" {
			c.Println(mutedStyle.Render("Tidak ada yang terdengar."))
			return
		}
		c.Println(mutedStyle.Render("Transkrip: " + transcript))
		c.Printf("Kirim sekarang? (Y/n) ")
		if !acceptTranscript(c.ReadLine()) {
			c.Println(mutedStyle.Render("Batal. Ketik sendiri kalau mau diubah."))
			return
		}
		submitTurn(c, transcript)
		return
	}

	voice.OnUpdate(func(snapshot string) {
		// Each snapshot replaces the composer line wholesale.
		c.Printf("\r🎤 %s", snapshot)
	})
	if err := voice.Start(); err != nil {
		c.Println(errorStyle.Render("Input suara gagal: " + err.Error()))
		return
	}
	c.Println(mutedStyle.Render("Mendengarkan... ketik 'voice' lagi untuk berhenti."))
}
