package lockstep

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/cbodonnell/lockstep/pkg/messages"
)

// ErrHistoryExceeded is returned when a requested tick has already been
// trimmed from the batch history.
var ErrHistoryExceeded = errors.New("requested tick is outside the history window")

// TransportError covers connect refused, send failed and malformed frames.
// It is recovered locally: retried through the pool, then the peer is
// promoted to Suspect or Lost.
type TransportError struct {
	Op     string
	PeerID uint32
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s to peer %d failed: %v", e.Op, e.PeerID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is a message that violates the protocol. The message is
// logged and discarded; the connection is only torn down when a peer keeps
// sending them.
type ProtocolError struct {
	PeerID uint32
	Kind   messages.Kind
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error from peer %d on %s: %s", e.PeerID, e.Kind, e.Reason)
}

// DesynchronizationError means a delivered batch does not carry the tick
// the simulation expected. Determinism is already violated, so it is fatal.
type DesynchronizationError struct {
	Expected uint64
	Got      uint64
}

func (e *DesynchronizationError) Error() string {
	return fmt.Sprintf("desynchronized: expected tick %d, got %d", e.Expected, e.Got)
}

// FatalSessionError ends the session for this host, e.g. when the leader
// is lost or a join is rejected.
type FatalSessionError struct {
	Reason string
	Err    error
}

func (e *FatalSessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session ended: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("session ended: %s", e.Reason)
}

func (e *FatalSessionError) Unwrap() error {
	return e.Err
}

func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

func IsProtocolError(err error) bool {
	var target *ProtocolError
	return errors.As(err, &target)
}

func IsDesynchronization(err error) bool {
	var target *DesynchronizationError
	return errors.As(err, &target)
}

func IsFatalSession(err error) bool {
	var target *FatalSessionError
	return errors.As(err, &target)
}
