package settings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresLoader struct {
	pool *pgxpool.Pool
}

func NewPostgresLoader(pool *pgxpool.Pool) *PostgresLoader {
	return &PostgresLoader{pool: pool}
}

func (l *PostgresLoader) Load(ctx context.Context) (map[string]string, error) {
	if l.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := l.pool.Query(ctx, "SELECT key, value FROM agent_settings")
	if err != nil {
		return nil, fmt.Errorf("query agent settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		values[key] = value
	}

	return values, rows.Err()
}

var _ Loader = (*PostgresLoader)(nil)
