// Package session wires a lockstep host to the optional replay recorder
// and status API. Everything a running session needs hangs off Session;
// there is no process-wide state.
package session

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/cbodonnell/lockstep/pkg/api"
	"github.com/cbodonnell/lockstep/pkg/auth/providers"
	"github.com/cbodonnell/lockstep/pkg/config"
	"github.com/cbodonnell/lockstep/pkg/lockstep"
	"github.com/cbodonnell/lockstep/pkg/log"
	"github.com/cbodonnell/lockstep/pkg/replay"
	"github.com/cbodonnell/lockstep/pkg/repositories"
	"github.com/cbodonnell/lockstep/pkg/types"
)

type Options struct {
	Config config.Config
	// Address is the listen address of a leader or the leader's address
	// for a follower.
	Address string
	// TwoParty starts the Server/Client variants instead of Leader/Follower.
	TwoParty bool
	// Token is presented by a follower in JOIN.
	Token string
	// AuthProvider verifies JOIN tokens on a leader and guards the status API.
	AuthProvider providers.AuthProvider
	// Repository, if set, records confirmed batches. The session closes it.
	Repository     repositories.Repository
	RecordInterval time.Duration
	// APIPort serves the status API when non-zero.
	APIPort int
	Logger  *log.Logger
}

type Session struct {
	host     lockstep.Host
	recorder *replay.Recorder
	stopRec  context.CancelFunc
	api      *api.APIServer
	repo     repositories.Repository
	logger   *log.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

// StartAsLeader starts sequencing a new session.
func StartAsLeader(ctx context.Context, opts Options) (*Session, error) {
	leaderOpts := lockstep.LeaderOptions{
		Config:       opts.Config,
		Address:      opts.Address,
		AuthProvider: opts.AuthProvider,
		Logger:       opts.Logger,
	}
	var host lockstep.Host
	var err error
	if opts.TwoParty {
		host, err = lockstep.StartServer(ctx, leaderOpts)
	} else {
		host, err = lockstep.StartLeader(ctx, leaderOpts)
	}
	if err != nil {
		return nil, err
	}
	return start(host, opts), nil
}

// StartAsFollower joins the session led at opts.Address.
func StartAsFollower(ctx context.Context, opts Options) (*Session, error) {
	followerOpts := lockstep.FollowerOptions{
		Config:  opts.Config,
		Address: opts.Address,
		Token:   opts.Token,
		Logger:  opts.Logger,
	}
	var host lockstep.Host
	var err error
	if opts.TwoParty {
		host, err = lockstep.StartClient(ctx, followerOpts)
	} else {
		host, err = lockstep.StartFollower(ctx, followerOpts)
	}
	if err != nil {
		return nil, err
	}
	return start(host, opts), nil
}

func start(host lockstep.Host, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Session{
		host:   host,
		repo:   opts.Repository,
		logger: logger.With("session", host.SessionID()),
	}

	if opts.Repository != nil {
		s.recorder = replay.NewRecorder(replay.NewRecorderOptions{
			Repository: opts.Repository,
			SessionID:  host.SessionID(),
			PlayerID:   host.PlayerID(),
			Role:       host.Role(),
			Interval:   opts.RecordInterval,
			Timeout:    opts.Config.ShutdownGrace,
			Logger:     s.logger,
		})
		var ctx context.Context
		ctx, s.stopRec = context.WithCancel(context.Background())
		go s.recorder.Start(ctx)
	}

	if opts.APIPort != 0 {
		s.api = api.NewAPIServer(api.NewAPIServerOptions{
			Port:         opts.APIPort,
			AuthProvider: opts.AuthProvider,
			Status:       host,
		})
		go s.api.Start()
	}

	return s
}

// Host returns the underlying lockstep host.
func (s *Session) Host() lockstep.Host {
	return s.host
}

func (s *Session) SessionID() string {
	return s.host.SessionID()
}

func (s *Session) SubmitLocalCommand(c types.Command) {
	s.host.SubmitLocalCommand(c)
}

// PollConfirmedBatches yields the host's ready batches, recording each one
// that is yielded.
func (s *Session) PollConfirmedBatches() iter.Seq[types.Batch] {
	return func(yield func(types.Batch) bool) {
		for b := range s.host.PollConfirmedBatches() {
			if s.recorder != nil {
				s.recorder.Record(b)
			}
			if !yield(b) {
				return
			}
		}
	}
}

func (s *Session) Errors() <-chan error {
	return s.host.Errors()
}

// Shutdown stops the host, then the recorder, the status API and finally
// the repository. It is safe to call more than once.
func (s *Session) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		var errs []error
		if err := s.host.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}

		if s.recorder != nil {
			s.stopRec()
			select {
			case <-s.recorder.Done():
			case <-ctx.Done():
				errs = append(errs, fmt.Errorf("recorder did not stop: %w", ctx.Err()))
			}
		}

		if s.api != nil {
			if err := s.api.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("failed to stop API server: %w", err))
			}
		}

		if s.repo != nil {
			if err := s.repo.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("failed to close repository: %w", err))
			}
		}

		if len(errs) > 0 {
			s.shutdownErr = errs[0]
			for _, err := range errs[1:] {
				s.logger.Error("Shutdown: %v", err)
			}
		}
	})
	return s.shutdownErr
}
