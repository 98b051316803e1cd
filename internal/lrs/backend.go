package lrs

import (
	"context"

	"lrsgate/internal/xapi"
)

// Backend is the storage strategy behind the gateway. One concrete type per
// store, selected once at startup; all methods are safe for concurrent use
type Backend interface {
	// Query runs a filtered, paginated statement query
	Query(ctx context.Context, p QueryParams) (*QueryResult, error)

	// QueryByIDs fetches statements by id. Empty input returns empty
	// output; unknown ids are skipped silently
	QueryByIDs(ctx context.Context, ids []string, opts ...ByIDsOption) ([]xapi.Statement, error)

	// Write persists a batch, stamping server-assigned ids and stored
	// times where absent, and returns the number accepted
	Write(ctx context.Context, statements []xapi.Statement) (int, error)

	// Ping reports store reachability
	Ping(ctx context.Context) error

	// Close releases the connection; the backend is unusable afterwards
	Close(ctx context.Context) error
}

// DefaultByIDsChunk bounds one by-ids round trip for stores that cannot
// take an unbounded id list in a single request
const DefaultByIDsChunk = 10000

// ByIDsOptions tunes the bulk by-ids path
type ByIDsOptions struct {
	// IgnoreErrors downgrades per-chunk execution failures to a logged
	// warning and an empty contribution instead of aborting the batch
	IgnoreErrors bool

	// ChunkSize caps ids per round trip; zero means DefaultByIDsChunk
	ChunkSize int
}

// ByIDsOption mutates ByIDsOptions
type ByIDsOption func(*ByIDsOptions)

// WithIgnoreErrors enables log-and-skip on chunk failures
func WithIgnoreErrors() ByIDsOption {
	return func(o *ByIDsOptions) { o.IgnoreErrors = true }
}

// WithChunkSize overrides the per-round-trip id cap
func WithChunkSize(n int) ByIDsOption {
	return func(o *ByIDsOptions) { o.ChunkSize = n }
}

// ApplyByIDs folds options over the defaults
func ApplyByIDs(opts ...ByIDsOption) ByIDsOptions {
	o := ByIDsOptions{ChunkSize: DefaultByIDsChunk}
	for _, fn := range opts {
		fn(&o)
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultByIDsChunk
	}
	return o
}

// Chunks splits ids into ChunkSize windows preserving order
func Chunks(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultByIDsChunk
	}
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
