package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"travel_tracker/internal/bus"
)

var watchOpts struct {
	profile      string
	guest        string
	eventSubject string
	pushSubject  string
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print engine events for a profile and push hints for a guest",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchOpts.profile == "" && watchOpts.guest == "" {
			return fmt.Errorf("one of --profile or --guest is required")
		}

		nc, err := bus.Connect(natsURL, "travelsim-watch", nil)
		if err != nil {
			return err
		}
		defer bus.Close(nc)

		out := cmd.OutOrStdout()
		printMsg := func(m *nats.Msg) { fmt.Fprintf(out, "%s %s\n", m.Subject, m.Data) }

		if watchOpts.profile != "" {
			id, err := uuid.Parse(watchOpts.profile)
			if err != nil {
				return fmt.Errorf("--profile: %w", err)
			}
			if _, err := nc.Subscribe(bus.Subject(watchOpts.eventSubject, id.String()), printMsg); err != nil {
				return err
			}
		}
		if watchOpts.guest != "" {
			id, err := uuid.Parse(watchOpts.guest)
			if err != nil {
				return fmt.Errorf("--guest: %w", err)
			}
			if _, err := nc.Subscribe(bus.Subject(watchOpts.pushSubject, id.String()), printMsg); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchOpts.profile, "profile", "", "travel profile id to watch events for")
	watchCmd.Flags().StringVar(&watchOpts.guest, "guest", "", "guest id to watch push hints for")
	watchCmd.Flags().StringVar(&watchOpts.eventSubject, "event-subject", "travel.events", "NATS event subject prefix")
	watchCmd.Flags().StringVar(&watchOpts.pushSubject, "push-subject", "travel.push", "NATS push subject prefix")
}
