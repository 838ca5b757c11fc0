package lockstep

import (
	"context"

	"github.com/cbodonnell/lockstep/pkg/types"
)

// StartServer starts the two-party variant of a leader: it admits exactly
// one remote peer.
func StartServer(ctx context.Context, opts LeaderOptions) (*Leader, error) {
	opts.Config.MaxPeers = 1
	return startLeader(ctx, types.RoleServer, opts)
}

// StartClient joins a server started with StartServer.
func StartClient(ctx context.Context, opts FollowerOptions) (*Follower, error) {
	return startFollower(ctx, types.RoleClient, opts)
}
