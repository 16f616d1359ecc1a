package pgx

import (
	"context"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// ProjectDBStorage implements store.ProjectStore on PostgreSQL. The
// hierarchy is kept as jsonb next to the rendered markup.
type ProjectDBStorage struct {
	conn pgxIConn
}

// NewProjectDBStorageWithConnection creates a ProjectDBStorage on an existing
// pool or transaction.
func NewProjectDBStorageWithConnection(conn pgxIConn) *ProjectDBStorage {
	return &ProjectDBStorage{conn: conn}
}
