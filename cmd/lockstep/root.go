package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	authproviders "github.com/cbodonnell/lockstep/pkg/auth/providers"
	"github.com/cbodonnell/lockstep/pkg/config"
	"github.com/cbodonnell/lockstep/pkg/log"
	"github.com/cbodonnell/lockstep/pkg/repositories"
	"github.com/cbodonnell/lockstep/pkg/version"
)

// RootOptions holds the flags shared by every command.
type RootOptions struct {
	LogLevel    string
	ConfigPath  string
	DatabaseURL string
	Transport   string

	config config.Config
	logger *log.Logger
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "lockstep",
		Short:         "Deterministic lockstep session host",
		Version:       version.Get(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (error|warn|info|debug|trace)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", os.Getenv("LOCKSTEP_DATABASE_URL"), "replay database (sqlite://<path> or postgresql://...)")
	cmd.PersistentFlags().StringVar(&opts.Transport, "transport", "", "transport override (tcp|ws)")

	cmd.AddCommand(NewLeaderCommand(opts))
	cmd.AddCommand(NewFollowerCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))

	return cmd
}

func (o *RootOptions) setup(cmd *cobra.Command) error {
	level, err := log.ParseLogLevel(o.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	o.logger = log.New(cmd.ErrOrStderr(), "", log.DefaultLoggerFlag, level)
	log.SetDefaultLogger(o.logger)

	o.config, err = config.Load(o.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}
	if o.Transport != "" {
		o.config.Transport = o.Transport
		if err := o.config.Validate(); err != nil {
			return fmt.Errorf("invalid transport: %v", err)
		}
	}
	return nil
}

// repository opens the replay database, if one is configured.
func (o *RootOptions) repository(ctx context.Context) (repositories.Repository, error) {
	if o.DatabaseURL == "" {
		return nil, nil
	}
	repository, err := repositories.Open(ctx, o.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %v", err)
	}
	return repository, nil
}

// authProvider builds the JOIN token verifier selected by kind.
func authProvider(ctx context.Context, kind string, token string) (authproviders.AuthProvider, error) {
	switch kind {
	case "", "none":
		return nil, nil
	case "static":
		if token == "" {
			return nil, fmt.Errorf("--token is required with --auth static")
		}
		return authproviders.NewStaticTokenProvider(token), nil
	case "firebase":
		projectID := os.Getenv("LOCKSTEP_FIREBASE_PROJECT_ID")
		if projectID == "" {
			return nil, fmt.Errorf("LOCKSTEP_FIREBASE_PROJECT_ID environment variable must be set")
		}
		provider, err := authproviders.NewFirebaseAuthProvider(ctx, authproviders.FirebaseOptions{
			ProjectID:       projectID,
			APIKey:          os.Getenv("LOCKSTEP_FIREBASE_API_KEY"),
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Firebase auth provider: %v", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", kind)
	}
}
