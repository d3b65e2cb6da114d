package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"travel_tracker/internal/bus"
	"travel_tracker/internal/geo"
	"travel_tracker/internal/location"
)

var walkOpts struct {
	profile    string
	from, to   string
	steps      int
	interval   time.Duration
	accuracy   float64
	fixSubject string
}

var walkCmd = &cobra.Command{
	Use:   "walk",
	Short: "Publish fixes along the great circle between two points",
	Example: `  travelsim walk --profile 6f1c... --from 51.4700,-0.4543 --to 51.4710,-0.4600 --steps 20
  travelsim walk --profile 6f1c... --from 51.47,-0.45 --to 51.50,-0.12 --interval 500ms`,
	RunE: func(cmd *cobra.Command, args []string) error {
		profileID, err := uuid.Parse(walkOpts.profile)
		if err != nil {
			return fmt.Errorf("--profile: %w", err)
		}
		from, err := parsePoint(walkOpts.from)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		to, err := parsePoint(walkOpts.to)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}

		nc, err := bus.Connect(natsURL, "travelsim", nil)
		if err != nil {
			return err
		}
		defer bus.Close(nc)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		subject := bus.Subject(walkOpts.fixSubject, profileID.String())
		fixes := walkFixes(from, to, walkOpts.steps, walkOpts.accuracy, time.Now().UTC(), walkOpts.interval)
		for i, fix := range fixes {
			if err := publishJSON(nc, subject, fix); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] %s %.6f,%.6f\n", i+1, len(fixes), subject, fix.Latitude, fix.Longitude)
			if i == len(fixes)-1 {
				break
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(walkOpts.interval):
			}
		}
		return nil
	},
}

var denyCmd = &cobra.Command{
	Use:   "deny",
	Short: "Report that the device revoked location permission",
	RunE: func(cmd *cobra.Command, args []string) error {
		profileID, err := uuid.Parse(walkOpts.profile)
		if err != nil {
			return fmt.Errorf("--profile: %w", err)
		}
		nc, err := bus.Connect(natsURL, "travelsim", nil)
		if err != nil {
			return err
		}
		defer bus.Close(nc)

		subject := bus.Subject(walkOpts.fixSubject, profileID.String())
		if err := publishJSON(nc, subject, location.FixMessage{Error: location.DeviceErrorPermissionDenied}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent permission_denied to %s\n", subject)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{walkCmd, denyCmd} {
		c.Flags().StringVar(&walkOpts.profile, "profile", "", "travel profile id")
		c.Flags().StringVar(&walkOpts.fixSubject, "subject", "travel.fixes", "NATS fix subject prefix")
		_ = c.MarkFlagRequired("profile")
	}
	walkCmd.Flags().StringVar(&walkOpts.from, "from", "", "start point as lat,lon")
	walkCmd.Flags().StringVar(&walkOpts.to, "to", "", "end point as lat,lon")
	walkCmd.Flags().IntVar(&walkOpts.steps, "steps", 10, "number of fixes to publish")
	walkCmd.Flags().DurationVar(&walkOpts.interval, "interval", time.Second, "delay between fixes")
	walkCmd.Flags().Float64Var(&walkOpts.accuracy, "accuracy", 8, "reported accuracy in meters")
	_ = walkCmd.MarkFlagRequired("from")
	_ = walkCmd.MarkFlagRequired("to")
}

func parsePoint(s string) (geo.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.Point{}, errors.New("expected lat,lon")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Point{}, err
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Point{}, err
	}
	p := geo.Point{Lat: lat, Lon: lon}
	if !p.Valid() {
		return geo.Point{}, fmt.Errorf("coordinate out of range: %s", s)
	}
	return p, nil
}

// walkFixes spreads steps fixes evenly from a to b, both ends included.
func walkFixes(a, b geo.Point, steps int, accuracy float64, start time.Time, interval time.Duration) []location.FixMessage {
	if steps < 2 {
		steps = 2
	}
	out := make([]location.FixMessage, 0, steps)
	total := geo.Distance(a, b)
	var speed float64
	if interval > 0 {
		speed = total / float64(steps-1) / interval.Seconds()
	}
	heading := geo.Bearing(a, b)
	for i := 0; i < steps; i++ {
		p := geo.Intermediate(a, b, float64(i)/float64(steps-1))
		s, h := speed, heading
		out = append(out, location.FixMessage{
			Latitude:  p.Lat,
			Longitude: p.Lon,
			Accuracy:  accuracy,
			Speed:     &s,
			Heading:   &h,
			Timestamp: start.Add(time.Duration(i) * interval),
		})
	}
	return out
}

func publishJSON(nc *nats.Conn, subject string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := nc.Publish(subject, b); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return nc.FlushWithContext(ctx)
}
