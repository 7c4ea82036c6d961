package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stratplan/companion/internal/model"
	"github.com/stratplan/companion/internal/transcription"
)

// replayFixture is a recorded sequence of SDK events.
type replayFixture struct {
	Session     string                `yaml:"session"`
	DedupWindow time.Duration         `yaml:"dedupWindow"`
	Events      []transcription.Event `yaml:"events"`
}

func newReplayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <fixture.yaml>",
		Short: "Feed recorded SDK events through a transcription session",
		Long: `Replay a YAML list of conferencing SDK events through a transcription
session and print the resulting blocks, the pending interim text and the
session counters.

Example fixture:

  session: demo
  events:
    - type: transcription-message
      text: Bom dia a todos.
      trackType: cam-audio
      timestamp: 2026-01-05T14:00:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fx, err := loadFixture(args[0])
			if err != nil {
				return err
			}
			replay(cmd.Context(), cmd.OutOrStdout(), fx)
			return nil
		},
	}

	return cmd
}

func loadFixture(path string) (*replayFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}

	var fx replayFixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parsing fixture %s: %w", path, err)
	}
	if fx.Session == "" {
		fx.Session = "replay"
	}
	return &fx, nil
}

// replay runs the fixture through a fresh session and prints the outcome.
func replay(ctx context.Context, out io.Writer, fx *replayFixture) model.TranscriptionView {
	sess := transcription.NewSession(transcription.Options{
		ID:          fx.Session,
		DedupWindow: fx.DedupWindow,
		Log:         slog.Default(),
	})

	for _, ev := range fx.Events {
		sess.Handle(ctx, ev)
	}
	v := sess.Stop(ctx)

	for _, b := range v.Blocks {
		fmt.Fprintf(out, "[%s %s] %s\n", b.Source, b.StartedAt.Format(time.TimeOnly), b.Text)
	}
	if v.Interim != "" {
		fmt.Fprintf(out, "(interim, %s) %s\n", v.InterimSource, v.Interim)
	}
	fmt.Fprintf(out, "received=%d duplicates=%d finals=%d interims=%d\n",
		v.Stats.Received, v.Stats.Duplicates, v.Stats.Finals, v.Stats.Interims)

	return v
}
