package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cbodonnell/lockstep/pkg/lockstep"
	"github.com/cbodonnell/lockstep/pkg/log"
	"github.com/cbodonnell/lockstep/pkg/session"
	"github.com/cbodonnell/lockstep/pkg/types"
)

// HostOptions holds the flags shared by leader and follower.
type HostOptions struct {
	*RootOptions
	Address  string
	TwoParty bool
	APIPort  int
	// Input submits each line read from stdin as a command payload.
	Input bool
	// Print writes every confirmed batch to stdout.
	Print bool
}

// simulate stands in for a simulation: every tick it applies the confirmed
// batches in order until ctx is done or the session fails.
func simulate(ctx context.Context, s *session.Session, tick time.Duration, input io.Reader, out io.Writer, print bool) error {
	if input != nil {
		go submitLines(ctx, s, input)
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var counter lockstep.TickCounter
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-s.Errors():
			if !ok {
				return nil
			}
			return err
		case <-ticker.C:
			for b := range s.PollConfirmedBatches() {
				if err := counter.Advance(b); err != nil {
					return err
				}
				if print {
					fmt.Fprintln(out, b.String())
				}
			}
		}
	}
}

func submitLines(ctx context.Context, s *session.Session, input io.Reader) {
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		s.SubmitLocalCommand(types.Command{Payload: []byte(line)})
	}
	if err := scanner.Err(); err != nil {
		log.Warn("Failed to read input: %v", err)
	}
}

// shutdown gives the session its configured grace period to stop.
func shutdown(s *session.Session, grace time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*grace)
	defer cancel()
	return s.Shutdown(ctx)
}
