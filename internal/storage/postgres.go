package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RegistryAccord/discovery-go/internal/model"
)

// postgres implements Journal on a PostgreSQL connection pool.
type postgres struct {
	db *pgxpool.Pool
}

// NewPostgres connects to dsn and creates the journal table if needed.
func NewPostgres(ctx context.Context, dsn string) (Journal, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	config.MaxConns = 4
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &postgres{db: pool}, nil
}

func initSchema(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
		CREATE TABLE IF NOT EXISTS exchanges (
		    id TEXT PRIMARY KEY,                     -- ULID, sorts by creation
		    operation TEXT NOT NULL,
		    method TEXT NOT NULL,
		    uri TEXT NOT NULL,
		    epoch TEXT NOT NULL,
		    status INTEGER NOT NULL DEFAULT 0,       -- 0 when no response arrived
		    error TEXT NOT NULL DEFAULT '',
		    correlation_id TEXT NOT NULL,
		    duration_ms BIGINT NOT NULL,
		    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_exchanges_operation ON exchanges(operation, id DESC);
		CREATE INDEX IF NOT EXISTS idx_exchanges_completed_at ON exchanges(completed_at);
	`
	_, err := db.Exec(ctx, schema)
	return err
}

func (p *postgres) Backend() string { return "postgres" }

func (p *postgres) Close() {
	p.db.Close()
}

func (p *postgres) Record(ctx context.Context, e model.Exchange) error {
	query := `INSERT INTO exchanges (id, operation, method, uri, epoch, status, error, correlation_id, duration_ms, completed_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := p.db.Exec(ctx, query,
		e.ID, e.Operation, e.Method, e.URI, e.Epoch, e.StatusCode, e.Error,
		e.CorrelationID, e.Duration.Milliseconds(), e.CompletedAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("failed to record exchange: %w", err)
	}
	return nil
}

const selectExchange = `SELECT id, operation, method, uri, epoch, status, error, correlation_id, duration_ms, completed_at FROM exchanges`

func scanExchange(row pgx.Row) (model.Exchange, error) {
	var (
		e          model.Exchange
		durationMS int64
	)
	err := row.Scan(&e.ID, &e.Operation, &e.Method, &e.URI, &e.Epoch, &e.StatusCode, &e.Error,
		&e.CorrelationID, &durationMS, &e.CompletedAt)
	e.Duration = time.Duration(durationMS) * time.Millisecond
	return e, err
}

func (p *postgres) Get(ctx context.Context, id string) (*model.Exchange, error) {
	e, err := scanExchange(p.db.QueryRow(ctx, selectExchange+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get exchange: %w", err)
	}
	return &e, nil
}

func (p *postgres) List(ctx context.Context, query model.ListExchangesQuery) (*model.ListExchangesResult, error) {
	baseQuery := selectExchange + ` WHERE TRUE`
	var args []interface{}
	argIndex := 1

	if query.Operation != "" {
		baseQuery += fmt.Sprintf(" AND operation = $%d", argIndex)
		args = append(args, query.Operation)
		argIndex++
	}
	if !query.Since.IsZero() {
		baseQuery += fmt.Sprintf(" AND completed_at >= $%d", argIndex)
		args = append(args, query.Since)
		argIndex++
	}
	if query.Cursor != "" {
		after, err := decodeCursor(query.Cursor)
		if err != nil {
			return nil, err
		}
		baseQuery += fmt.Sprintf(" AND id < $%d", argIndex)
		args = append(args, after)
		argIndex++
	}

	limit := pageSize(query.Limit)
	baseQuery += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1) // one extra row tells whether there is a next page

	rows, err := p.db.Query(ctx, baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer rows.Close()

	exchanges := []model.Exchange{}
	for rows.Next() {
		e, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		exchanges = append(exchanges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}

	result := &model.ListExchangesResult{Exchanges: exchanges}
	if len(exchanges) > limit {
		result.Exchanges = exchanges[:limit]
		result.NextCursor = encodeCursor(result.Exchanges[limit-1].ID)
	}
	return result, nil
}
