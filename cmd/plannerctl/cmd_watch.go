package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratplan/companion/internal/client"
	"github.com/stratplan/companion/internal/config"
	"github.com/stratplan/companion/internal/model"
	"github.com/stratplan/companion/internal/planning"
)

type watchOptions struct {
	backendURL string
	apiKey     string
	token      string
	interval   time.Duration
	timeout    time.Duration
	maxRetries int
	jsonOutput bool
}

func newWatchCommand() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <planningId>",
		Short: "Poll a planning until its refined tasks are ready",
		Long: `Poll the backend for a planning the same way the refined tab does and
print every tab-state change. The command exits once the tasks are ready or
polling fails.

Backend settings default to the server configuration (config.yaml and
BACKEND_* environment variables).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringVar(&opts.backendURL, "backend", "", "Backend base URL (default from config)")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "Backend API key (default from config)")
	cmd.Flags().StringVar(&opts.token, "token", "", "Bearer token to act as a user")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "Delay between polls (default from config)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Give up after this long (default from config)")
	cmd.Flags().IntVar(&opts.maxRetries, "max-retries", 0, "Consecutive failures tolerated (default from config)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the refined tasks as JSON when ready")

	return cmd
}

func runWatch(cmd *cobra.Command, planningID string, opts *watchOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	backend := cfg.Backend
	if opts.backendURL != "" {
		backend.BaseURL = opts.backendURL
	}
	if opts.apiKey != "" {
		backend.APIKey = opts.apiKey
	}

	pollCfg := planning.Config{
		Interval:   cfg.Polling.Interval(),
		RetryDelay: cfg.Polling.RetryDelay(),
		MaxRetries: cfg.Polling.MaxRetries,
		Timeout:    cfg.Polling.Timeout(),
	}
	if opts.interval > 0 {
		pollCfg.Interval = opts.interval
	}
	if opts.timeout > 0 {
		pollCfg.Timeout = opts.timeout
	}
	if opts.maxRetries > 0 {
		pollCfg.MaxRetries = opts.maxRetries
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if opts.token != "" {
		ctx = client.WithBearer(ctx, opts.token)
	}

	out := cmd.OutOrStdout()
	fetcher := client.NewBackendClient(&backend, slog.Default())

	v, err := watchPlanning(ctx, out, fetcher, planningID, pollCfg)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		return writeTasks(out, v.Tasks)
	}
	return nil
}

// watchPlanning polls one planning and reports every state change to out.
// It returns the final view once the tasks are ready, or the poll error.
// Fetches carry the values of ctx, including a bearer token.
func watchPlanning(ctx context.Context, out io.Writer, fetcher planning.Fetcher,
	planningID string, cfg planning.Config) (planning.View, error) {

	tracker := planning.NewTracker(slog.Default())
	poller := planning.NewPoller(fetcher, tracker, cfg, nil, slog.Default())
	tracker.SetPoller(poller)
	defer poller.StopAll()

	done := make(chan planning.View, 1)
	tracker.SetListener(func(v planning.View) {
		fmt.Fprintf(out, "%s  %-10s tasks=%d\n", v.UpdatedAt.Format(time.TimeOnly),
			v.State.Name(), len(v.Tasks))

		switch v.State.(type) {
		case planning.Ready, planning.New, planning.Errored:
			select {
			case done <- v:
			default:
			}
		}
	})

	tracker.Track(planningID, true)
	tracker.Start(ctx, planningID)

	select {
	case v := <-done:
		if e, ok := v.State.(planning.Errored); ok {
			return v, fmt.Errorf("planning %s: %w", planningID, e.Err)
		}
		return v, nil
	case <-ctx.Done():
		return tracker.View(planningID), ctx.Err()
	}
}

func writeTasks(out io.Writer, tasks []model.Task) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(tasks)
}
