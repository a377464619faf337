package cmd

import (
	"fmt"
	"os"

	"ollama-chat-be/internal/config"
	"ollama-chat-be/pkg/llm"
	"ollama-chat-be/pkg/llm/factory"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	ollamaURL      string
	natsURL        string
	charactersPath string
	pullBinary     string

	cfg *config.Config
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)
)

var rootCmd = &cobra.Command{
	Use:   "modelctl",
	Short: "Manage local Ollama models and chat presets",
	Long: `Operator tool for the Ollama chat service.

It talks to the same Ollama server and reads the same preset file as the
HTTP service, using the same .env / environment configuration.

Quick Start:
  modelctl models              # List models split into chat and caption
  modelctl pull llama3.2:3b    # Pull a model with live progress
  modelctl rm llama3.2:3b      # Remove an installed model
  modelctl ask "Hello there"   # One-off prompt to the default chat model
  modelctl characters          # List presets from the preset file
  modelctl watch               # Tail download events from NATS`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		if ollamaURL != "" {
			cfg.Ai.OllamaBaseURL = ollamaURL
		}
		if natsURL != "" {
			cfg.App.NatsURL = natsURL
		}
		if charactersPath != "" {
			cfg.Characters.FilePath = charactersPath
		}
		if pullBinary != "" {
			cfg.Ai.PullBinary = pullBinary
		}
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ollamaURL, "ollama", "", "Ollama base URL (default from OLLAMA_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats", "", "NATS URL (default from NATS_URL)")
	rootCmd.PersistentFlags().StringVar(&charactersPath, "characters", "", "Preset file (default from CHARACTERS_FILE)")
	rootCmd.PersistentFlags().StringVar(&pullBinary, "binary", "", "Pull binary (default from OLLAMA_BINARY)")
}

func newBackend() (llm.Backend, error) {
	return factory.NewBackend("ollama", cfg.Ai.DefaultChatModel, cfg.Ai.OllamaBaseURL, cfg.Ai.RequestTimeout)
}
