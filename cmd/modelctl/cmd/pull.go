package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"ollama-chat-be/internal/entity"
	"ollama-chat-be/pkg/download"

	"github.com/spf13/cobra"
)

const cliSession = "modelctl"

var pullInterval time.Duration

var pullCmd = &cobra.Command{
	Use:   "pull <model>",
	Short: "Pull a model and show its progress",
	Long: `Pull a model through the same supervisor the service uses, printing the
normalized progress on one line until the pull finishes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		supervisor := download.NewSupervisor(
			download.NewExecRunner(cfg.Ai.PullBinary),
			download.WithStrictNames(cfg.Download.StrictNames),
			// keep the finished job visible until we read it
			download.WithRetention(time.Hour),
		)

		if _, err := supervisor.Start(ctx, cliSession, args[0]); err != nil {
			return err
		}
		return followPull(ctx, supervisor, os.Stdout, pullInterval)
	},
}

// followPull redraws the job's progress line until it finishes or ctx ends.
// The pull's output is read by this process, so it cannot outlive it.
func followPull(ctx context.Context, supervisor *download.Supervisor, out io.Writer, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			fmt.Fprintln(out, mutedStyle.Render("Interrupted; the pull stops with modelctl. Run it again to resume"))
			return nil
		case <-ticker.C:
		}

		job, ok := supervisor.Poll(cliSession)
		if !ok {
			continue
		}
		fmt.Fprintf(out, "\r\033[K%s %s", progressStyle.Render(fmt.Sprintf("%3d%%", job.ProgressPercent)), job.Message)

		switch job.Status {
		case entity.DownloadStatusCompleted:
			fmt.Fprintln(out)
			fmt.Fprintln(out, successStyle.Render("Pulled ")+job.ModelName)
			return nil
		case entity.DownloadStatusError:
			fmt.Fprintln(out)
			return fmt.Errorf("%s", job.Message)
		}
	}
}

func init() {
	pullCmd.Flags().DurationVar(&pullInterval, "interval", 500*time.Millisecond, "Progress refresh interval")
	rootCmd.AddCommand(pullCmd)
}
