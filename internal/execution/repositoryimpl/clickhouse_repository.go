package repositoryimpl

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/chainagent/chainagent/internal/execution"
)

// ClickHouseRepository stores execution records in ClickHouse for
// analytical queries over swap history.
type ClickHouseRepository struct {
	conn driver.Conn
}

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Timeout  int
}

func NewClickHouseRepository(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseRepository, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: time.Duration(cfg.Timeout) * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := createTableIfNotExists(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &ClickHouseRepository{conn: conn}, nil
}

var _ execution.Repository = (*ClickHouseRepository)(nil)

func createTableIfNotExists(ctx context.Context, conn driver.Conn) error {
	return conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS execution_records (
			id String,
			user String,
			executor String,
			token_in String,
			token_out String,
			amount_in Int64,
			amount_out UInt256,
			price Int64,
			timestamp DateTime,
			recorded_at DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY (id)
	`)
}

func (r *ClickHouseRepository) Append(ctx context.Context, rec *execution.Record) error {
	query := `
		INSERT INTO execution_records (
			id, user, executor, token_in, token_out, amount_in, amount_out, price, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return r.conn.Exec(ctx, query,
		rec.ID, rec.User, rec.Executor, rec.TokenIn, rec.TokenOut,
		rec.AmountIn, rec.AmountOut, rec.Price, rec.Timestamp,
	)
}

func (r *ClickHouseRepository) List(ctx context.Context) ([]*execution.Record, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, user, executor, token_in, token_out, amount_in, amount_out, price, timestamp
		FROM execution_records
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []*execution.Record
	for rows.Next() {
		var rec execution.Record
		rec.AmountOut = new(big.Int)
		if err := rows.Scan(
			&rec.ID, &rec.User, &rec.Executor, &rec.TokenIn, &rec.TokenOut,
			&rec.AmountIn, rec.AmountOut, &rec.Price, &rec.Timestamp,
		); err != nil {
			return nil, err
		}
		all = append(all, &rec)
	}
	return all, rows.Err()
}
