package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"ollama-chat-be/internal/constant"
	"ollama-chat-be/pkg/llm"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List installed models split into chat and caption",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := newBackend()
		if err != nil {
			return err
		}

		models, err := backend.ListModels(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list models: %w", err)
		}
		if len(models) == 0 {
			fmt.Println(mutedStyle.Render("No models installed"))
			return nil
		}

		names := make([]string, 0, len(models))
		for _, m := range models {
			names = append(names, m.Name)
		}
		chat, caption := llm.Partition(names, constant.CaptionModelKeywords)

		fmt.Println(headerStyle.Render(fmt.Sprintf("Chat models (%d)", len(chat))))
		for _, name := range chat {
			fmt.Println("  " + nameStyle.Render(name))
		}
		fmt.Println(headerStyle.Render(fmt.Sprintf("Caption models (%d)", len(caption))))
		for _, name := range caption {
			fmt.Println("  " + nameStyle.Render(name))
		}

		fmt.Println(headerStyle.Render("Installed"))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED")
		for _, m := range models {
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, humanSize(m.Size), m.ModifiedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <model>",
	Short: "Remove an installed model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := newBackend()
		if err != nil {
			return err
		}
		if err := backend.DeleteModel(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Removed ") + args[0])
		return nil
	},
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(rmCmd)
}
