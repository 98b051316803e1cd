// Package fs is the filesystem statement backend: an append-only JSONL
// archive, one statement per line, where insertion order is read order.
// It trades query speed for zero operational surface and suits local
// development and small deployments
package fs

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"lrsgate/internal/lrs"
	perr "lrsgate/internal/platform/errors"
	"lrsgate/internal/platform/logger"
	"lrsgate/internal/xapi"
)

const target = "fs"

// Config locates the archive file
type Config struct {
	Path string
}

// Backend reads and appends the JSONL archive. Reads take no lock; the
// archive is append-only so a concurrent scan sees a consistent prefix
type Backend struct {
	path string
	log  logger.Logger

	mu sync.Mutex // serializes appends
}

// Open prepares the archive, creating parent directories as needed
func Open(cfg Config) (*Backend, error) {
	if cfg.Path == "" {
		return nil, perr.BackendParamf("fs backend requires a file path")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, perr.BackendErr(err, target, "open")
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, perr.BackendErr(err, target, "open")
	}
	if err := f.Close(); err != nil {
		return nil, perr.BackendErr(err, target, "open")
	}
	return &Backend{path: cfg.Path, log: *logger.Named("lrs.fs")}, nil
}

// Query scans the archive in insertion order, skips past the cursor, and
// collects up to the limit. The archive has no secondary sort key, so the
// Ascending flag does not reorder results
func (b *Backend) Query(ctx context.Context, p lrs.QueryParams) (*lrs.QueryResult, error) {
	match := predicate(p)
	limit := p.EffectiveLimit()

	var out []xapi.Statement
	skipping := p.SearchAfter != ""
	err := b.scan(ctx, func(s xapi.Statement) (bool, error) {
		if skipping {
			if s.ID() == p.SearchAfter {
				skipping = false
			}
			return true, nil
		}
		if !match(s) {
			return true, nil
		}
		out = append(out, s)
		return len(out) < limit, nil
	})
	if err != nil {
		return nil, err
	}
	if skipping {
		// the cursor id never appeared, so it cannot come from this archive
		return nil, perr.BackendParamf("unknown search_after cursor")
	}

	cursor := ""
	if len(out) > 0 {
		cursor = out[len(out)-1].ID()
	}
	return lrs.NewResult(out, cursor, ""), nil
}

// QueryByIDs scans once and keeps statements whose id is requested,
// preserving archive order. Unknown ids are skipped silently
func (b *Backend) QueryByIDs(ctx context.Context, ids []string, opts ...lrs.ByIDsOption) ([]xapi.Statement, error) {
	if len(ids) == 0 {
		return []xapi.Statement{}, nil
	}
	o := lrs.ApplyByIDs(opts...)

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	out := []xapi.Statement{}
	err := b.scan(ctx, func(s xapi.Statement) (bool, error) {
		if _, ok := want[s.ID()]; ok {
			out = append(out, s)
		}
		return len(out) < len(want), nil
	})
	if err != nil {
		if o.IgnoreErrors {
			b.log.Warn().Err(err).Msg("by-ids scan failed; returning empty")
			return []xapi.Statement{}, nil
		}
		return nil, err
	}
	return out, nil
}

// Write appends statements as JSONL, stamping server-assigned fields
func (b *Backend) Write(ctx context.Context, statements []xapi.Statement) (int, error) {
	if len(statements) == 0 {
		return 0, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, perr.BackendErr(err, target, "write")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			b.log.Error().Err(cerr).Msg("failed to close archive")
		}
	}()

	w := bufio.NewWriter(f)
	n := 0
	for _, s := range statements {
		if err := ctx.Err(); err != nil {
			return n, perr.BackendErr(err, target, "write")
		}
		xapi.Prepare(s)
		line, err := json.Marshal(s)
		if err != nil {
			return n, perr.Wrapf(err, perr.ErrorCodeBackend, "encode statement %s", s.ID())
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return n, perr.BackendErr(err, target, "write")
		}
		n++
	}
	if err := w.Flush(); err != nil {
		return 0, perr.BackendErr(err, target, "write")
	}
	return n, nil
}

// Ping verifies the archive is reachable
func (b *Backend) Ping(_ context.Context) error {
	if _, err := os.Stat(b.path); err != nil {
		return perr.BackendErr(err, target, "ping")
	}
	return nil
}

// Close is a no-op; the archive holds no long-lived handle
func (b *Backend) Close(context.Context) error { return nil }

// scan streams the archive line by line. visit returns false to stop early
func (b *Backend) scan(ctx context.Context, visit func(xapi.Statement) (bool, error)) error {
	f, err := os.Open(b.path)
	if err != nil {
		return perr.BackendErr(err, target, "scan")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			b.log.Error().Err(cerr).Msg("failed to close archive")
		}
	}()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return perr.BackendErr(err, target, "scan")
		}
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var s xapi.Statement
		if err := json.Unmarshal(raw, &s); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeBackend, "corrupt archive line %d", line)
		}
		more, err := visit(s)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return perr.BackendErr(err, target, "scan")
	}
	return nil
}
