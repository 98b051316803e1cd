// Package es is the Elasticsearch statement backend. Statements live as
// documents in a single index; deep pagination rides a point-in-time
// handle with search_after so pages stay consistent under ingestion
package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"lrsgate/internal/lrs"
	perr "lrsgate/internal/platform/errors"
	"lrsgate/internal/platform/logger"
	"lrsgate/internal/xapi"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
)

const (
	target       = "elasticsearch"
	defaultIndex = "statements"
	pitKeepAlive = "1m"
)

// Config configures Elasticsearch connectivity
type Config struct {
	Addrs    []string
	Username string
	Password string
	Index    string
}

// Backend talks to Elasticsearch over its REST API. The client is created
// lazily exactly once on first use
type Backend struct {
	cfg Config
	log logger.Logger

	once    sync.Once
	c       *elasticsearch.Client
	openErr error
}

// Open validates the config; the first request dials
func Open(cfg Config) (*Backend, error) {
	if len(cfg.Addrs) == 0 {
		return nil, perr.BackendParamf("elasticsearch backend requires at least one address")
	}
	if cfg.Index == "" {
		cfg.Index = defaultIndex
	}
	return &Backend{cfg: cfg, log: *logger.Named("lrs.es")}, nil
}

func (b *Backend) client() (*elasticsearch.Client, error) {
	b.once.Do(func() {
		c, err := elasticsearch.NewClient(elasticsearch.Config{
			Addresses: b.cfg.Addrs,
			Username:  b.cfg.Username,
			Password:  b.cfg.Password,
		})
		if err != nil {
			b.openErr = perr.BackendErr(err, target, "open")
			return
		}
		b.c = c
	})
	return b.c, b.openErr
}

// searchHit is the slice of a search response hit the gateway reads
type searchHit struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
	Sort   []any           `json:"sort"`
}

type searchResponse struct {
	PitID string `json:"pit_id"`
	Hits  struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

// Query translates, opens or reuses a point in time, and assembles a page
func (b *Backend) Query(ctx context.Context, p lrs.QueryParams) (*lrs.QueryResult, error) {
	q, err := translate(p)
	if err != nil {
		return nil, err
	}
	c, err := b.client()
	if err != nil {
		return nil, err
	}

	if q.pit == "" {
		pit, err := b.openPIT(ctx, c)
		if err != nil {
			return nil, err
		}
		q.pit = pit
	}

	body, err := json.Marshal(q.Body())
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeBackend, "encode search body")
	}
	res, err := c.Search(
		c.Search.WithContext(ctx),
		c.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, perr.BackendErr(err, target, "query")
	}
	defer drain(res)

	sr, err := decodeSearch(res, "query")
	if err != nil {
		return nil, err
	}

	stmts := make([]xapi.Statement, 0, len(sr.Hits.Hits))
	var lastSort []any
	for _, hit := range sr.Hits.Hits {
		s, err := decodeSource(hit)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		lastSort = hit.Sort
	}
	return lrs.NewResult(stmts, encodeSearchAfter(lastSort), sr.PitID), nil
}

// QueryByIDs fetches ids in chunks with an ids query; no point in time,
// the id list is already a stable snapshot
func (b *Backend) QueryByIDs(ctx context.Context, ids []string, opts ...lrs.ByIDsOption) ([]xapi.Statement, error) {
	if len(ids) == 0 {
		return []xapi.Statement{}, nil
	}
	o := lrs.ApplyByIDs(opts...)
	c, err := b.client()
	if err != nil {
		return nil, err
	}

	out := []xapi.Statement{}
	for _, chunk := range lrs.Chunks(ids, o.ChunkSize) {
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

func (b *Backend) chunkByIDs(ctx context.Context, c *elasticsearch.Client, chunk []string) ([]xapi.Statement, error) {
	body, err := json.Marshal(map[string]any{
		"size":  len(chunk),
		"query": map[string]any{"ids": map[string]any{"values": chunk}},
		"sort": []map[string]any{
			{"timestamp": map[string]any{"order": "asc"}},
			{"id.keyword": map[string]any{"order": "asc"}},
		},
	})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeBackend, "encode by-ids body")
	}

	res, err := c.Search(
		c.Search.WithContext(ctx),
		c.Search.WithIndex(b.cfg.Index),
		c.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, perr.BackendErr(err, target, "query_by_ids")
	}
	defer drain(res)

	sr, err := decodeSearch(res, "query_by_ids")
	if err != nil {
		return nil, err
	}
	stmts := make([]xapi.Statement, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		s, err := decodeSource(hit)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

// Write bulk-indexes a batch; the indexer flushes on close
func (b *Backend) Write(ctx context.Context, statements []xapi.Statement) (int, error) {
	if len(statements) == 0 {
		return 0, nil
	}
	c, err := b.client()
	if err != nil {
		return 0, err
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client: c,
		Index:  b.cfg.Index,
	})
	if err != nil {
		return 0, perr.BackendErr(err, target, "write")
	}

	for _, s := range statements {
		xapi.Prepare(s)
		raw, err := json.Marshal(s)
		if err != nil {
			return 0, perr.Wrapf(err, perr.ErrorCodeBackend, "encode statement %s", s.ID())
		}
		item := esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: s.ID(),
			Body:       bytes.NewReader(raw),
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, ri esutil.BulkIndexerResponseItem, err error) {
				b.log.Warn().Err(err).Str("id", item.DocumentID).Str("reason", ri.Error.Reason).
					Msg("bulk index item failed")
			},
		}
		if err := bi.Add(ctx, item); err != nil {
			_ = bi.Close(ctx)
			return 0, perr.BackendErr(err, target, "write")
		}
	}
	if err := bi.Close(ctx); err != nil {
		return 0, perr.BackendErr(err, target, "write")
	}

	stats := bi.Stats()
	accepted := len(statements) - int(stats.NumFailed)
	if stats.NumFailed > 0 {
		return accepted, perr.Backendf("bulk indexing failed for %d of %d statements",
			stats.NumFailed, len(statements))
	}
	return accepted, nil
}

// Ping round-trips the cluster
func (b *Backend) Ping(ctx context.Context) error {
	c, err := b.client()
	if err != nil {
		return err
	}
	res, err := c.Ping(c.Ping.WithContext(ctx))
	if err != nil {
		return perr.BackendErr(err, target, "ping")
	}
	defer drain(res)
	if res.IsError() {
		return perr.Backendf("elasticsearch ping: %s", res.Status())
	}
	return nil
}

// Close is a no-op; the REST client keeps no stateful connection
func (b *Backend) Close(context.Context) error { return nil }

func (b *Backend) openPIT(ctx context.Context, c *elasticsearch.Client) (string, error) {
	res, err := c.OpenPointInTime([]string{b.cfg.Index}, pitKeepAlive,
		c.OpenPointInTime.WithContext(ctx))
	if err != nil {
		return "", perr.BackendErr(err, target, "open_pit")
	}
	defer drain(res)
	if res.IsError() {
		return "", statusErr(res, "open_pit")
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeBackend, "decode pit response")
	}
	return out.ID, nil
}

// decodeSearch maps REST failures into the error taxonomy and decodes the
// body with numbers kept verbatim so sort values survive the cursor codec
func decodeSearch(res *esapi.Response, op string) (*searchResponse, error) {
	if res.IsError() {
		return nil, statusErr(res, op)
	}
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	var sr searchResponse
	if err := dec.Decode(&sr); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeBackend, "decode search response")
	}
	return &sr, nil
}

func decodeSource(hit searchHit) (xapi.Statement, error) {
	var s xapi.Statement
	if err := json.Unmarshal(hit.Source, &s); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeBackend, "corrupt document %s", hit.ID)
	}
	return s, nil
}

// statusErr classifies REST-level failures: a 4xx means the request the
// translator built (or the cursor the caller replayed) is unacceptable
func statusErr(res *esapi.Response, op string) error {
	snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	if res.StatusCode >= http.StatusBadRequest && res.StatusCode < http.StatusInternalServerError {
		return perr.WithOp(perr.BackendParamf("elasticsearch rejected the request: %s", res.Status()), op)
	}
	return perr.WithOp(perr.WithTarget(
		perr.Backendf("elasticsearch %s: %s", res.Status(), string(snippet)), target), op)
}

func drain(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
