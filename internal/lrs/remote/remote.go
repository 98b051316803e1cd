// Package remote is the forwarding statement backend: queries and writes
// are relayed to another LRS over its xAPI HTTP interface, with that
// server's "more" link carried as the opaque pagination cursor
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"lrsgate/internal/lrs"
	perr "lrsgate/internal/platform/errors"
	"lrsgate/internal/platform/logger"
	"lrsgate/internal/xapi"
)

const target = "remote"

// Config locates and authenticates against the downstream LRS
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Backend relays to the downstream LRS. The HTTP client is created lazily
// exactly once on first use
type Backend struct {
	cfg  Config
	base *url.URL
	log  logger.Logger

	once sync.Once
	c    *http.Client
}

// Open validates and parses the base URL
func Open(cfg Config) (*Backend, error) {
	if cfg.BaseURL == "" {
		return nil, perr.BackendParamf("remote backend requires a base URL")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || !base.IsAbs() {
		return nil, perr.BackendParamf("remote backend base URL must be absolute")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Backend{cfg: cfg, base: base, log: *logger.Named("lrs.remote")}, nil
}

func (b *Backend) client() *http.Client {
	b.once.Do(func() {
		b.c = &http.Client{Timeout: b.cfg.Timeout}
	})
	return b.c
}

// statementsPage is the downstream response shape
type statementsPage struct {
	Statements []xapi.Statement `json:"statements"`
	More       string           `json:"more"`
}

// Query forwards the query string, or replays the downstream more link
// when the caller hands back the cursor
func (b *Backend) Query(ctx context.Context, p lrs.QueryParams) (*lrs.QueryResult, error) {
	u, err := b.queryURL(p)
	if err != nil {
		return nil, err
	}

	var page statementsPage
	if err := b.do(ctx, http.MethodGet, u, nil, &page); err != nil {
		return nil, err
	}
	if page.Statements == nil {
		page.Statements = []xapi.Statement{}
	}
	return lrs.NewResult(page.Statements, page.More, ""), nil
}

// QueryByIDs fetches one statement per request; a downstream 404 means
// the id is unknown and is skipped silently
func (b *Backend) QueryByIDs(ctx context.Context, ids []string, opts ...lrs.ByIDsOption) ([]xapi.Statement, error) {
	if len(ids) == 0 {
		return []xapi.Statement{}, nil
	}
	o := lrs.ApplyByIDs(opts...)

	out := []xapi.Statement{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, perr.BackendErr(err, target, "query_by_ids")
		}
		u := *b.base
		u.Path += "/xAPI/statements"
		u.RawQuery = url.Values{"statementId": []string{id}}.Encode()

		var s xapi.Statement
		err := b.do(ctx, http.MethodGet, &u, nil, &s)
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			continue
		}
		if err != nil {
			if o.IgnoreErrors {
				b.log.Warn().Err(err).Str("id", id).Msg("by-ids fetch failed; skipping")
				continue
			}
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Write relays the batch in one POST
func (b *Backend) Write(ctx context.Context, statements []xapi.Statement) (int, error) {
	if len(statements) == 0 {
		return 0, nil
	}
	for _, s := range statements {
		xapi.Prepare(s)
	}
	body, err := json.Marshal(statements)
	if err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeBackend, "encode statement batch")
	}

	u := *b.base
	u.Path += "/xAPI/statements"
	if err := b.do(ctx, http.MethodPost, &u, bytes.NewReader(body), nil); err != nil {
		return 0, err
	}
	return len(statements), nil
}

// Ping asks the downstream about resource
func (b *Backend) Ping(ctx context.Context) error {
	u := *b.base
	u.Path += "/xAPI/about"
	return b.do(ctx, http.MethodGet, &u, nil, nil)
}

// Close is a no-op; the HTTP client keeps no stateful connection
func (b *Backend) Close(context.Context) error { return nil }

// queryURL renders the request target, preferring the cursor when present
func (b *Backend) queryURL(p lrs.QueryParams) (*url.URL, error) {
	if p.PITID != "" {
		return nil, perr.BackendParamf("pit_id is not supported by this backend")
	}
	if p.SearchAfter != "" {
		// the cursor is the more link the downstream handed out
		more, err := url.Parse(p.SearchAfter)
		if err != nil {
			return nil, perr.BackendParamf("malformed search_after cursor")
		}
		resolved := *b.base
		resolved.Path = more.Path
		resolved.RawQuery = more.RawQuery
		return &resolved, nil
	}

	vals, err := values(p)
	if err != nil {
		return nil, err
	}
	u := *b.base
	u.Path += "/xAPI/statements"
	u.RawQuery = vals.Encode()
	return &u, nil
}

// do executes one request with basic auth and maps downstream failures
// into the error taxonomy
func (b *Backend) do(ctx context.Context, method string, u *url.URL, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return perr.BackendErr(err, target, "request")
	}
	req.SetBasicAuth(b.cfg.Username, b.cfg.Password)
	req.Header.Set("X-Experience-API-Version", "1.0.3")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := b.client().Do(req)
	if err != nil {
		return perr.BackendErr(err, target, "request")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return perr.NotFoundf("statement not found downstream")
	case res.StatusCode == http.StatusBadRequest:
		return perr.BackendParamf("downstream rejected the request: %s", res.Status)
	case res.StatusCode >= http.StatusMultipleChoices:
		return perr.Backendf("downstream %s", res.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeBackend, "decode downstream response")
	}
	return nil
}
