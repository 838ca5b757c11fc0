package repositories

import (
	"context"
	"embed"
	"io/fs"

	"github.com/cbodonnell/lockstep/pkg/repositories/models"
)

//go:embed migrations
var migrations embed.FS

// Migrations returns the bundled migrations for driver ("sqlite" or "postgres").
func Migrations(driver string) fs.FS {
	sub, err := fs.Sub(migrations, "migrations/"+driver)
	if err != nil {
		panic(err)
	}
	return sub
}

// Repository stores recorded sessions for replay.
type Repository interface {
	Close(ctx context.Context) error
	// CreateSession records that a host took part in a session. Creating
	// the same session twice is not an error.
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string, playerID uint32) (*models.Session, error)
	SaveSegment(ctx context.Context, segment *models.Segment) error
	// ListSegments returns the segments of a session ordered by first tick.
	ListSegments(ctx context.Context, sessionID string, playerID uint32) ([]*models.Segment, error)
}
