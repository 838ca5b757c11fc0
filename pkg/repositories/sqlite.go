package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cbodonnell/lockstep/pkg/repositories/models"
)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database at path and applies every
// migration in migrations in name order.
func NewSQLiteRepository(ctx context.Context, path string, migrations fs.FS) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if err := migrate(ctx, migrations, func(ctx context.Context, name string, migration string) error {
		_, err := db.ExecContext(ctx, migration)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

// migrate runs exec for each .sql file in migrations, sorted by name.
func migrate(ctx context.Context, migrations fs.FS, exec func(ctx context.Context, name string, migration string) error) error {
	names, err := fs.Glob(migrations, "*.sql")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %v", err)
	}
	sort.Strings(names)

	for _, name := range names {
		migration, err := fs.ReadFile(migrations, name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %v", name, err)
		}

		if err := exec(ctx, name, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %v", name, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, session *models.Session) error {
	if session.CreatedAt == 0 {
		session.CreatedAt = time.Now().UnixMilli()
	}
	q := `
	INSERT OR IGNORE INTO sessions (id, player_id, role, created_at)
	VALUES (?, ?, ?, ?);
	`
	_, err := r.db.ExecContext(ctx, q, session.ID, session.PlayerID, session.Role, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string, playerID uint32) (*models.Session, error) {
	q := `
	SELECT role, created_at FROM sessions WHERE id = ? AND player_id = ?;
	`
	session := &models.Session{
		ID:       id,
		PlayerID: playerID,
	}
	if err := r.db.QueryRowContext(ctx, q, id, playerID).Scan(&session.Role, &session.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan session: %v", err)
	}

	return session, nil
}

func (r *SQLiteRepository) SaveSegment(ctx context.Context, segment *models.Segment) error {
	if segment.CreatedAt == 0 {
		segment.CreatedAt = time.Now().UnixMilli()
	}
	q := `
	INSERT OR REPLACE INTO segments (session_id, player_id, first_tick, last_tick, archive, created_at)
	VALUES (?, ?, ?, ?, ?, ?);
	`
	_, err := r.db.ExecContext(ctx, q,
		segment.SessionID, segment.PlayerID,
		int64(segment.FirstTick), int64(segment.LastTick),
		segment.Archive, segment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert segment: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) ListSegments(ctx context.Context, sessionID string, playerID uint32) ([]*models.Segment, error) {
	q := `
	SELECT first_tick, last_tick, archive, created_at FROM segments
	WHERE session_id = ? AND player_id = ?
	ORDER BY first_tick;
	`
	rows, err := r.db.QueryContext(ctx, q, sessionID, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %v", err)
	}
	defer rows.Close()

	segments := make([]*models.Segment, 0)
	for rows.Next() {
		var first, last int64
		segment := &models.Segment{
			SessionID: sessionID,
			PlayerID:  playerID,
		}
		if err := rows.Scan(&first, &last, &segment.Archive, &segment.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %v", err)
		}
		segment.FirstTick = uint64(first)
		segment.LastTick = uint64(last)
		segments = append(segments, segment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read segments: %v", err)
	}

	return segments, nil
}
