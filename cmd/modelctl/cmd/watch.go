package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"ollama-chat-be/pkg/events"
	pktNats "ollama-chat-be/pkg/nats"

	"github.com/spf13/cobra"
)

var watchAll bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail service events from NATS",
	Long: `Tail events forwarded by running service instances. By default only
download events are shown; --all includes registry and eviction events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.App.NatsURL == "" {
			return errors.New("NATS_URL is not set (use --nats)")
		}

		sub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			return err
		}
		defer sub.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		subject := pktNats.SubjectPrefix + ">"
		fmt.Println(mutedStyle.Render("Watching " + subject + " (Ctrl+C to stop)"))

		return sub.Watch(ctx, subject, printEvent)
	},
}

func printEvent(_ context.Context, evt events.BaseEvent) error {
	ts := mutedStyle.Render(evt.OccurredAt.Format("15:04:05"))

	isDownload := strings.HasPrefix(evt.Type, "DOWNLOAD_")
	if !isDownload && !watchAll {
		return nil
	}

	if isDownload {
		job := events.DownloadJobFromPayload(evt.Data)
		style := progressStyle
		switch evt.Type {
		case events.TypeDownloadCompleted:
			style = successStyle
		case events.TypeDownloadFailed:
			style = errorStyle
		}
		fmt.Printf("%s %s %s %3d%% %s\n", ts, style.Render(evt.Type), nameStyle.Render(job.ModelName), job.ProgressPercent, job.Message)
		return nil
	}

	keys := make([]string, 0, len(evt.Data))
	for k := range evt.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, evt.Data[k]))
	}
	fmt.Printf("%s %s %s\n", ts, headerStyle.Render(evt.Type), strings.Join(parts, " "))
	return nil
}

func init() {
	watchCmd.Flags().BoolVar(&watchAll, "all", false, "Show every event type")
	rootCmd.AddCommand(watchCmd)
}
