package replay

import (
	"context"
	"fmt"

	"github.com/cbodonnell/lockstep/pkg/lockstep"
	"github.com/cbodonnell/lockstep/pkg/repositories"
	"github.com/cbodonnell/lockstep/pkg/types"
)

// Load reads every recorded segment of a session and returns its batches
// in tick order.
func Load(ctx context.Context, repo repositories.Repository, sessionID string, playerID uint32) ([]types.Batch, error) {
	if _, err := repo.GetSession(ctx, sessionID, playerID); err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}

	segments, err := repo.ListSegments(ctx, sessionID, playerID)
	if err != nil {
		return nil, err
	}

	batches := make([]types.Batch, 0)
	for _, segment := range segments {
		decoded, err := DecodeArchive(segment.Archive)
		if err != nil {
			return nil, fmt.Errorf("failed to decode segment at tick %d: %w", segment.FirstTick, err)
		}
		batches = append(batches, decoded...)
	}

	return batches, nil
}

// Verify checks that batches form a gap-free tick sequence, the same
// check a live host applies before handing batches to the simulation.
func Verify(batches []types.Batch) error {
	var counter lockstep.TickCounter
	for _, b := range batches {
		if err := counter.Advance(b); err != nil {
			return err
		}
	}
	return nil
}
