package lockstep

import (
	"sync/atomic"

	"github.com/cbodonnell/lockstep/pkg/network"
)

// severLeader closes the follower's connection to the leader without
// telling the follower, as a network failure would.
func (f *Follower) severLeader() {
	f.peers.Do(func(map[uint32]*Peer) {
		if f.leader != nil {
			f.leader.Abort()
		}
	})
}

// peerState returns the leader's protocol state for id.
func (l *Leader) peerState(id uint32) PeerState {
	state, _ := l.peers.State(id)
	return state
}

// failSends makes the next n broadcast sends fail with err. It returns
// the number of injected failures so far.
func (l *Leader) failSends(n int, err error) func() int {
	var remaining, injected atomic.Int32
	remaining.Store(int32(n))
	l.peers.Do(func(map[uint32]*Peer) {
		send := l.send
		l.send = func(conn *network.Connection, body []byte) error {
			if remaining.Add(-1) >= 0 {
				injected.Add(1)
				return err
			}
			return send(conn, body)
		}
	})
	return func() int { return int(injected.Load()) }
}
