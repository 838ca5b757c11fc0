package repositories

import (
	"context"
	"fmt"
	"net/url"
)

// Open connects to the repository named by databaseURL, either
// sqlite://<path> or postgresql://..., and applies its migrations.
func Open(ctx context.Context, databaseURL string) (Repository, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %v", err)
	}

	switch u.Scheme {
	case "sqlite":
		path := u.Host + u.Path
		if path == "" {
			return nil, fmt.Errorf("sqlite database URL has no path")
		}
		return NewSQLiteRepository(ctx, path, Migrations("sqlite"))
	case "postgres", "postgresql":
		return NewPostgresRepository(ctx, u.String(), Migrations("postgres"))
	default:
		return nil, fmt.Errorf("unsupported database scheme: %s", u.Scheme)
	}
}
