package cmd

import (
	"context"
	"fmt"
	"strings"

	"ollama-chat-be/pkg/llm"

	"github.com/spf13/cobra"
)

var askModel string

var askCmd = &cobra.Command{
	Use:   "ask <prompt...>",
	Short: "Send a one-off prompt to a model",
	Long: `Send a single prompt to a chat model with the service's sampling settings
(AI_TEMPERATURE, AI_MAX_TOKENS). Handy for checking a model right after a pull.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := newBackend()
		if err != nil {
			return err
		}

		model := askModel
		if model == "" {
			model = cfg.Ai.DefaultChatModel
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Ai.RequestTimeout)
		defer cancel()

		reply, err := backend.Generate(ctx, strings.Join(args, " "), askOptions(model, cfg.Ai.Temperature, cfg.Ai.MaxTokens)...)
		if err != nil {
			return fmt.Errorf("%s did not answer: %w", model, err)
		}

		fmt.Println(nameStyle.Render(model))
		fmt.Println(strings.TrimSpace(reply))
		return nil
	},
}

func askOptions(model string, temperature float64, maxTokens int) []llm.Option {
	opts := []llm.Option{llm.WithModel(model), llm.WithTemperature(temperature)}
	if maxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(maxTokens))
	}
	return opts
}

func init() {
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "Model to ask (default from DEFAULT_CHAT_MODEL)")
	rootCmd.AddCommand(askCmd)
}
