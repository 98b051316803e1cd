// Package ch is the ClickHouse statement backend. Statements land in a
// MergeTree table keyed by (emission_time, event_id) with the raw event
// kept as a JSON string and filtered through ClickHouse JSON functions
package ch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"lrsgate/internal/lrs"
	perr "lrsgate/internal/platform/errors"
	"lrsgate/internal/platform/logger"
	"lrsgate/internal/xapi"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
)

const target = "clickhouse"

const ddl = `
CREATE TABLE IF NOT EXISTS statements (
	event_id      UUID,
	emission_time DateTime64(6, 'UTC'),
	event         String
)
ENGINE = MergeTree
ORDER BY (emission_time, event_id)`

// Config configures ClickHouse connectivity
type Config struct {
	Addrs       []string
	Database    string
	Username    string
	Password    string
	DialTimeout time.Duration
}

// Backend talks to ClickHouse through the native protocol. The connection
// is created lazily exactly once on first use
type Backend struct {
	cfg Config
	log logger.Logger

	once    sync.Once
	c       driver.Conn
	openErr error
}

// Open validates the config; the first query dials
func Open(cfg Config) (*Backend, error) {
	if len(cfg.Addrs) == 0 {
		return nil, perr.BackendParamf("clickhouse backend requires at least one address")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Backend{cfg: cfg, log: *logger.Named("lrs.ch")}, nil
}

// conn dials on first use and ensures the statements table exists
func (b *Backend) conn(ctx context.Context) (driver.Conn, error) {
	b.once.Do(func() {
		c, err := clickhouse.Open(&clickhouse.Options{
			Addr: b.cfg.Addrs,
			Auth: clickhouse.Auth{
				Database: b.cfg.Database,
				Username: b.cfg.Username,
				Password: b.cfg.Password,
			},
			DialTimeout: b.cfg.DialTimeout,
			ClientInfo:  BuildClientInfo("api", ""),
		})
		if err != nil {
			b.openErr = perr.BackendErr(err, target, "open")
			return
		}
		if err := c.Ping(ctx); err != nil {
			b.openErr = perr.BackendErr(err, target, "open")
			return
		}
		if err := c.Exec(ctx, ddl); err != nil {
			b.openErr = perr.BackendErr(err, target, "open")
			return
		}
		b.c = c
	})
	return b.c, b.openErr
}

// Query translates, executes, and assembles one page
func (b *Backend) Query(ctx context.Context, p lrs.QueryParams) (*lrs.QueryResult, error) {
	q, err := translate(p)
	if err != nil {
		return nil, err
	}
	c, err := b.conn(ctx)
	if err != nil {
		return nil, err
	}

	sql, args := q.SQL()
	rows, err := c.Query(ctx, sql, args...)
	if err != nil {
		return nil, perr.BackendErr(err, target, "query")
	}
	defer rows.Close()

	stmts, lastTS, lastID, err := collect(rows)
	if err != nil {
		return nil, err
	}
	sa, pit := encodeCursor(lastTS, lastID)
	return lrs.NewResult(stmts, sa, pit), nil
}

// QueryByIDs fetches ids in chunks, one round trip per chunk. Chunk order
// defines output order; ids that are not UUIDs cannot exist in the table
// and are dropped up front
func (b *Backend) QueryByIDs(ctx context.Context, ids []string, opts ...lrs.ByIDsOption) ([]xapi.Statement, error) {
	if len(ids) == 0 {
		return []xapi.Statement{}, nil
	}
	o := lrs.ApplyByIDs(opts...)

	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}

	c, err := b.conn(ctx)
	if err != nil {
		return nil, err
	}

	out := []xapi.Statement{}
	for _, chunk := range lrs.Chunks(valid, o.ChunkSize) {
		if err := ctx.Err(); err != nil {
			return nil, perr.BackendErr(err, target, "query_by_ids")
		}
		stmts, err := b.chunkByIDs(ctx, c, chunk)
		if err != nil {
			if o.IgnoreErrors {
				b.log.Warn().Err(err).Int("ids", len(chunk)).Msg("by-ids chunk failed; skipping")
				continue
			}
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

func (b *Backend) chunkByIDs(ctx context.Context, c driver.Conn, chunk []string) ([]xapi.Statement, error) {
	rows, err := c.Query(ctx,
		"SELECT event_id, emission_time, event FROM statements WHERE event_id IN (?) "+
			"ORDER BY emission_time, event_id", chunk)
	if err != nil {
		return nil, perr.BackendErr(err, target, "query_by_ids")
	}
	defer rows.Close()

	stmts, _, _, err := collect(rows)
	return stmts, err
}

// Write inserts a batch through the native columnar protocol
func (b *Backend) Write(ctx context.Context, statements []xapi.Statement) (int, error) {
	if len(statements) == 0 {
		return 0, nil
	}
	c, err := b.conn(ctx)
	if err != nil {
		return 0, err
	}

	batch, err := c.PrepareBatch(ctx, "INSERT INTO statements (event_id, emission_time, event)")
	if err != nil {
		return 0, perr.BackendErr(err, target, "write")
	}

	for _, s := range statements {
		xapi.Prepare(s)
		ts, ok := s.Timestamp()
		if !ok {
			ts, _ = s.Stored()
		}
		raw, err := json.Marshal(s)
		if err != nil {
			return 0, perr.Wrapf(err, perr.ErrorCodeBackend, "encode statement %s", s.ID())
		}
		if err := batch.Append(s.ID(), ts.UTC(), string(raw)); err != nil {
			return 0, perr.BackendErr(err, target, "write")
		}
	}
	if err := batch.Send(); err != nil {
		return 0, perr.BackendErr(err, target, "write")
	}
	return len(statements), nil
}

// Ping dials if needed and round-trips the server
func (b *Backend) Ping(ctx context.Context) error {
	c, err := b.conn(ctx)
	if err != nil {
		return err
	}
	if err := c.Ping(ctx); err != nil {
		return perr.BackendErr(err, target, "ping")
	}
	return nil
}

// Close releases the native connection pool
func (b *Backend) Close(context.Context) error {
	if b.c == nil {
		return nil
	}
	if err := b.c.Close(); err != nil {
		return perr.BackendErr(err, target, "close")
	}
	return nil
}

// collect drains rows into statements and remembers the last composite key
func collect(rows driver.Rows) ([]xapi.Statement, time.Time, string, error) {
	var (
		out    []xapi.Statement
		lastTS time.Time
		lastID string
	)
	for rows.Next() {
		var (
			id  uuid.UUID
			ts  time.Time
			raw string
		)
		if err := rows.Scan(&id, &ts, &raw); err != nil {
			return nil, lastTS, lastID, perr.BackendErr(err, target, "scan")
		}
		var s xapi.Statement
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, lastTS, lastID, perr.Wrapf(err, perr.ErrorCodeBackend, "corrupt event %s", id)
		}
		out = append(out, s)
		lastTS, lastID = ts, id.String()
	}
	if err := rows.Err(); err != nil {
		return nil, lastTS, lastID, perr.BackendErr(err, target, "scan")
	}
	return out, lastTS, lastID, nil
}
