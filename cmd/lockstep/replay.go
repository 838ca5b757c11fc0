package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbodonnell/lockstep/pkg/replay"
)

type ReplayOptions struct {
	*RootOptions
	SessionID string
	PlayerID  uint32
}

func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Verify and print the batches recorded for a session",
		Long: `Load the batches one host recorded for a session, check that they form
a gap-free tick sequence and print them one per line.

Examples:
  lockstep replay --database-url sqlite://lockstep.db --session 1b4e28ba-2fa1-11d2-883f-0016d3cca427
  lockstep replay --database-url sqlite://lockstep.db --session 1b4e28ba-2fa1-11d2-883f-0016d3cca427 --player 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session id (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().Uint32Var(&opts.PlayerID, "player", 1, "player id of the recording host")

	return cmd
}

func runReplay(cmd *cobra.Command, opts *ReplayOptions) error {
	if opts.DatabaseURL == "" {
		return fmt.Errorf("--database-url or LOCKSTEP_DATABASE_URL is required")
	}
	ctx := context.Background()

	repository, err := opts.repository(ctx)
	if err != nil {
		return err
	}
	defer repository.Close(ctx)

	batches, err := replay.Load(ctx, repository, opts.SessionID, opts.PlayerID)
	if err != nil {
		return err
	}
	if err := replay.Verify(batches); err != nil {
		return fmt.Errorf("recording is not continuous: %w", err)
	}

	return replay.Dump(cmd.OutOrStdout(), batches)
}
