package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cbodonnell/lockstep/pkg/log"
	"github.com/cbodonnell/lockstep/pkg/session"
	"github.com/cbodonnell/lockstep/pkg/version"
)

type LeaderOptions struct {
	HostOptions
	Auth  string
	Token string
}

func NewLeaderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LeaderOptions{HostOptions: HostOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "leader",
		Short: "Start a session and sequence every player's commands",
		Long: `Start a session as its leader.

The leader listens for followers, assembles one batch of commands per tick
and broadcasts it to every synchronized follower.

Examples:
  lockstep leader --listen :7777
  lockstep leader --listen :7777 --two-party --auth static --token secret
  lockstep leader --listen :7777 --database-url sqlite://lockstep.db --api-port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeader(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Address, "listen", ":7777", "address to listen on")
	cmd.Flags().BoolVar(&opts.TwoParty, "two-party", false, "admit exactly one follower")
	cmd.Flags().IntVar(&opts.APIPort, "api-port", 0, "serve the status API on this port")
	cmd.Flags().BoolVar(&opts.Input, "input", false, "submit each line of stdin as a command")
	cmd.Flags().BoolVar(&opts.Print, "print", false, "print every confirmed batch")
	cmd.Flags().StringVar(&opts.Auth, "auth", "none", "JOIN token verification (none|static|firebase)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "shared token for --auth static")

	return cmd
}

func runLeader(cmd *cobra.Command, opts *LeaderOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting lockstep leader version %s", version.Get())

	provider, err := authProvider(ctx, opts.Auth, opts.Token)
	if err != nil {
		return err
	}
	repository, err := opts.repository(ctx)
	if err != nil {
		return err
	}

	s, err := session.StartAsLeader(ctx, session.Options{
		Config:       opts.config,
		Address:      opts.Address,
		TwoParty:     opts.TwoParty,
		AuthProvider: provider,
		Repository:   repository,
		APIPort:      opts.APIPort,
		Logger:       opts.logger,
	})
	if err != nil {
		if repository != nil {
			repository.Close(ctx)
		}
		return err
	}
	log.Info("Session %s started", s.SessionID())

	runErr := simulate(ctx, s, opts.config.TickInterval, inputOf(cmd, opts.Input), cmd.OutOrStdout(), opts.Print)
	if err := shutdown(s, opts.config.ShutdownGrace); err != nil {
		log.Error("Failed to shut down: %v", err)
	}
	return runErr
}
