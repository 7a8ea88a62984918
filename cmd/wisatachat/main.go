// Package main provides the WisataChat CLI application entry point.
// WisataChat is the conversational front door to the JemberTrip tourism
// catalog: a multi-session chat client for the Cak Jember assistant with
// voice input and a persisted language preference.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"wisatachat/internal/logger"
	"wisatachat/internal/services"
	"wisatachat/internal/shell"
	"wisatachat/internal/version"
)

var (
	logLevel     string
	logFile      string
	apiBaseURL   string
	storePath    string
	voiceCommand string
	showDetails  bool
)

// rootCmd represents the base command; without a subcommand it starts the
// interactive chat shell.
var rootCmd = &cobra.Command{
	Use:   "wisatachat",
	Short: "WisataChat - asisten wisata Jember di terminal",
	Long: `WisataChat is a terminal client for the Cak Jember tourism assistant.
It manages multiple chat sessions, renders assistant answers with citations
and place recommendations, and supports voice input in Indonesian and
Javanese.`,
	Run: runChat,
}

// chatCmd is the explicit version of the default behavior.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat shell",
	Run:   runChat,
}

// loginCmd exchanges a username/password for a bearer credential and stores
// it durably.
var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and store the access token",
	Args:  cobra.ExactArgs(1),
	Run:   runLogin,
}

// logoutCmd clears the stored credential and profile.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	Run:   runLogout,
}

// sessionsCmd lists the stored chat sessions without entering the shell.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored chat sessions",
	Run:   runSessions,
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		if showDetails {
			fmt.Println(version.GetDetailedVersion())
			return
		}
		fmt.Println(version.GetFormattedVersion())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "Assistant backend base URL")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Settings store file [default: user config dir]")
	rootCmd.PersistentFlags().StringVar(&voiceCommand, "voice-command", "", "External speech-to-text command for voice input")

	for _, flag := range []string{"log-level", "log-file", "api-url", "store", "voice-command"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", flag, err)
			os.Exit(1)
		}
	}
	viper.SetEnvPrefix("WISATA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(sessionsCmd)
	versionCmd.Flags().BoolVar(&showDetails, "details", false, "Show detailed build information")
	rootCmd.AddCommand(versionCmd)

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	if err := logger.Configure(viper.GetString("log-level"), viper.GetString("log-file")); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
}

// initServices wires the engine with the resolved configuration.
func initServices() {
	err := shell.InitializeServices(shell.Config{
		StorePath:    viper.GetString("store"),
		APIBaseURL:   viper.GetString("api-url"),
		VoiceCommand: viper.GetString("voice-command"),
	})
	if err != nil {
		logger.Fatal("Failed to initialize services", "error", err)
	}
}

func runChat(_ *cobra.Command, _ []string) {
	logger.Info("Starting WisataChat", "version", version.GetVersion())
	initServices()

	if err := shell.Run(version.GetVersion()); err != nil {
		logger.Fatal("Shell exited with error", "error", err)
	}
}

func runLogin(_ *cobra.Command, args []string) {
	initServices()

	username := args[0]
	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		logger.Fatal("Failed to read password", "error", err)
	}

	client, err := services.GetGlobalChatClient()
	if err != nil {
		logger.Fatal("Chat client unavailable", "error", err)
	}
	settings, err := services.GetGlobalSettingsService()
	if err != nil {
		logger.Fatal("Settings unavailable", "error", err)
	}

	token, profile, err := client.Login(context.Background(), username, string(password))
	if err != nil {
		logger.Fatal("Login failed", "error", err)
	}
	if err := settings.SetCredential(token, profile); err != nil {
		logger.Fatal("Failed to store credential", "error", err)
	}

	fmt.Printf("Halo %s, kamu sudah login!\n", profile.FullName)
}

func runLogout(_ *cobra.Command, _ []string) {
	initServices()

	settings, err := services.GetGlobalSettingsService()
	if err != nil {
		logger.Fatal("Settings unavailable", "error", err)
	}
	if err := settings.ClearCredential(); err != nil {
		logger.Fatal("Failed to clear credential", "error", err)
	}
	fmt.Println("Sampai jumpa!")
}

func runSessions(_ *cobra.Command, _ []string) {
	initServices()

	client, err := services.GetGlobalChatClient()
	if err != nil {
		logger.Fatal("Chat client unavailable", "error", err)
	}

	sessions, err := client.ListSessions(context.Background())
	if err != nil {
		logger.Fatal("Failed to list sessions", "error", err)
	}
	if len(sessions) == 0 {
		fmt.Println("Belum ada riwayat chat.")
		return
	}
	for i, s := range sessions {
		fmt.Printf("%2d. %s (%s)\n", i+1, s.Title, s.CreatedAt.Format("2 Jan 2006 15:04"))
	}
}
