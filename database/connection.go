package database

import (
	"context"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillsenselab/harnesskit/connection"
	"github.com/skillsenselab/harnesskit/errors"
	"github.com/skillsenselab/harnesskit/logger"
)

// Conn wraps one pgx pool as a managed connection.
type Conn struct {
	id        string
	pool      *pgxpool.Pool
	log       *logger.Logger
	connected atomic.Bool
}

func newConn(id string, pool *pgxpool.Pool, log *logger.Logger) *Conn {
	c := &Conn{
		id:   id,
		pool: pool,
		log:  log.WithFields(logger.ConnFields(ServiceType, id)),
	}
	c.connected.Store(true)
	return c
}

func (c *Conn) ID() string          { return c.id }
func (c *Conn) ServiceType() string { return ServiceType }
func (c *Conn) IsConnected() bool   { return c.connected.Load() }

// Pool returns the underlying pgx pool for callers that need it directly.
func (c *Conn) Pool() *pgxpool.Pool { return c.pool }

// Close drains and closes the pool.
func (c *Conn) Close(ctx context.Context) error {
	if !c.connected.Swap(false) {
		return nil
	}
	c.pool.Close()
	return nil
}

// Healthy pings the database.
func (c *Conn) Healthy(ctx context.Context) bool {
	if !c.IsConnected() {
		return false
	}
	return c.pool.Ping(ctx) == nil
}

// Query runs a SELECT and returns the rows as maps keyed by column name.
func (c *Conn) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	if !c.IsConnected() {
		return nil, errors.NotConnected(ServiceType + "/" + c.id)
	}

	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		c.log.Error("query failed", logger.ErrorFields("query", err))
		return nil, errors.QueryFailed(err)
	}
	defer rows.Close()

	out, err := collectRows(rows)
	if err != nil {
		return nil, errors.QueryFailed(err)
	}
	return out, nil
}

// Exec runs a statement and returns the number of affected rows.
func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if !c.IsConnected() {
		return 0, errors.NotConnected(ServiceType + "/" + c.id)
	}

	tag, err := c.pool.Exec(ctx, sql, args...)
	if err != nil {
		c.log.Error("exec failed", logger.ErrorFields("exec", err))
		return 0, errors.QueryFailed(err)
	}
	return tag.RowsAffected(), nil
}

func collectRows(rows pgx.Rows) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

var _ connection.Connection = (*Conn)(nil)
var _ connection.HealthChecker = (*Conn)(nil)
