package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cbodonnell/lockstep/pkg/log"
	"github.com/cbodonnell/lockstep/pkg/session"
	"github.com/cbodonnell/lockstep/pkg/version"
)

type FollowerOptions struct {
	HostOptions
	Token string
}

func NewFollowerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FollowerOptions{HostOptions: HostOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "follower",
		Short: "Join a session led by another host",
		Long: `Join a session as a follower.

Examples:
  lockstep follower --leader 10.0.0.2:7777 --input --print
  lockstep follower --leader ws://10.0.0.2:7777/ --transport ws --token secret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFollower(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Address, "leader", "", "address of the leader (required)")
	_ = cmd.MarkFlagRequired("leader")
	cmd.Flags().BoolVar(&opts.TwoParty, "two-party", false, "join a two-party server")
	cmd.Flags().IntVar(&opts.APIPort, "api-port", 0, "serve the status API on this port")
	cmd.Flags().BoolVar(&opts.Input, "input", false, "submit each line of stdin as a command")
	cmd.Flags().BoolVar(&opts.Print, "print", false, "print every confirmed batch")
	cmd.Flags().StringVar(&opts.Token, "token", os.Getenv("LOCKSTEP_TOKEN"), "token presented to the leader")

	return cmd
}

func runFollower(cmd *cobra.Command, opts *FollowerOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting lockstep follower version %s", version.Get())

	repository, err := opts.repository(ctx)
	if err != nil {
		return err
	}

	s, err := session.StartAsFollower(ctx, session.Options{
		Config:     opts.config,
		Address:    opts.Address,
		TwoParty:   opts.TwoParty,
		Token:      opts.Token,
		Repository: repository,
		APIPort:    opts.APIPort,
		Logger:     opts.logger,
	})
	if err != nil {
		if repository != nil {
			repository.Close(context.Background())
		}
		return err
	}
	log.Info("Joined session %s as player %d", s.SessionID(), s.Host().PlayerID())

	runErr := simulate(ctx, s, opts.config.TickInterval, inputOf(cmd, opts.Input), cmd.OutOrStdout(), opts.Print)
	if err := shutdown(s, opts.config.ShutdownGrace); err != nil {
		log.Error("Failed to shut down: %v", err)
	}
	return runErr
}

func inputOf(cmd *cobra.Command, enabled bool) io.Reader {
	if !enabled {
		return nil
	}
	return cmd.InOrStdin()
}
