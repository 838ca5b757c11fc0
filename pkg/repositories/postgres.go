package repositories

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cbodonnell/lockstep/pkg/log"
	"github.com/cbodonnell/lockstep/pkg/repositories/models"
)

type PostgresRepository struct {
	conn *pgx.Conn
}

// NewPostgresRepository connects to connStr and applies migrations.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string, migrations fs.FS) (Repository, error) {
	conn, err := connectDb(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := migrate(ctx, migrations, func(ctx context.Context, name string, migration string) error {
		_, err := conn.Exec(ctx, migration)
		return err
	}); err != nil {
		conn.Close(ctx)
		return nil, err
	}

	return &PostgresRepository{
		conn: conn,
	}, nil
}

func connectDb(ctx context.Context, connStr string) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	var username string
	var database string
	err = conn.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database)
	if err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("unable to query database: %v", err)
	}

	log.Info("Connected to %s as %s", database, username)

	return conn, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	return r.conn.Close(ctx)
}

func (r *PostgresRepository) CreateSession(ctx context.Context, session *models.Session) error {
	if session.CreatedAt == 0 {
		session.CreatedAt = time.Now().UnixMilli()
	}
	q := `
	INSERT INTO sessions (id, player_id, role, created_at) VALUES ($1, $2, $3, $4)
	ON CONFLICT (id, player_id) DO NOTHING;
	`
	_, err := r.conn.Exec(ctx, q, session.ID, int64(session.PlayerID), session.Role, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %v", err)
	}

	return nil
}

func (r *PostgresRepository) GetSession(ctx context.Context, id string, playerID uint32) (*models.Session, error) {
	q := `
	SELECT role, created_at FROM sessions WHERE id = $1 AND player_id = $2;
	`
	session := &models.Session{
		ID:       id,
		PlayerID: playerID,
	}
	if err := r.conn.QueryRow(ctx, q, id, int64(playerID)).Scan(&session.Role, &session.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan session: %v", err)
	}

	return session, nil
}

func (r *PostgresRepository) SaveSegment(ctx context.Context, segment *models.Segment) error {
	if segment.CreatedAt == 0 {
		segment.CreatedAt = time.Now().UnixMilli()
	}
	q := `
	INSERT INTO segments (session_id, player_id, first_tick, last_tick, archive, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (session_id, player_id, first_tick) DO UPDATE SET last_tick = $4, archive = $5, created_at = $6;
	`
	_, err := r.conn.Exec(ctx, q,
		segment.SessionID, int64(segment.PlayerID),
		int64(segment.FirstTick), int64(segment.LastTick),
		segment.Archive, segment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert segment: %v", err)
	}

	return nil
}

func (r *PostgresRepository) ListSegments(ctx context.Context, sessionID string, playerID uint32) ([]*models.Segment, error) {
	q := `
	SELECT first_tick, last_tick, archive, created_at FROM segments
	WHERE session_id = $1 AND player_id = $2
	ORDER BY first_tick;
	`
	rows, err := r.conn.Query(ctx, q, sessionID, int64(playerID))
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
