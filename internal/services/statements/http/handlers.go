// Package http provides the xAPI statements transport
package http

import (
	"bytes"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/url"

	"lrsgate/internal/lrs"
	"lrsgate/internal/modkit/httpkit"
	"lrsgate/internal/modkit/scope"
	perr "lrsgate/internal/platform/errors"
	pnet "lrsgate/internal/platform/net"
	"lrsgate/internal/platform/net/middleware"
	"lrsgate/internal/services/statements/domain"
	svc "lrsgate/internal/services/statements/service"
	"lrsgate/internal/xapi"
)

// authorityKey carries the caller's authority mbox across the write path
const authorityKey = "authority"

// Register mounts the statements endpoints on the given router.
// Reads and writes sit behind separate scopes from the same credential store
func Register(r httpkit.Router, s svc.Service, store middleware.CredentialStore) {
	h := &handlers{svc: s}

	httpkit.Protected(r, store, "statements/read", func(gr httpkit.Router) {
		httpkit.Get(gr, "/statements", h.query)
	})
	httpkit.Protected(r, store, "statements/write", func(gr httpkit.Router) {
		gr.Use(withAuthority(store))
		gr.Put("/statements", httpkit.Call(h.put))
		httpkit.Post(gr, "/statements", h.post)
	})
}

// withAuthority resolves the authenticated caller's authority mbox and
// carries it on the request context for the ingestion handlers
func withAuthority(store middleware.CredentialStore) func(stdhttp.Handler) stdhttp.Handler {
	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			if user := pnet.UserID(r.Context()); user != "" {
				if cred, ok := store.Lookup(user); ok && cred.Authority != "" {
					ctx := scope.With(r.Context(), map[string]string{authorityKey: cred.Authority})
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// stampAuthority attaches the caller's authority agent to statements that
// do not already carry one
func stampAuthority(r *stdhttp.Request, statements []xapi.Statement) {
	mbox, ok := scope.Get(r.Context(), authorityKey)
	if !ok || mbox == "" {
		return
	}
	for _, st := range statements {
		if _, has := st["authority"]; !has {
			st["authority"] = map[string]any{"objectType": "Agent", "mbox": mbox}
		}
	}
}

type handlers struct{ svc svc.Service }

// swagger:route GET /xAPI/statements Statements statementsQuery
// @Summary Query stored statements
// @Tags Statements
// @Produce json
// @Success 200 {object} domain.StatementsPage "ok"
// @Router /xAPI/statements [get]
func (h *handlers) query(r *stdhttp.Request) (any, error) {
	p, err := lrs.FromValues(r.URL.Query())
	if err != nil {
		return nil, err
	}

	// statementId / voidedStatementId is a single-statement fetch and
	// answers with the bare statement rather than a page
	if p.IDOnly() {
		st, err := h.svc.Get(r.Context(), p.TargetID())
		if err != nil {
			return nil, err
		}
		return httpkit.BareJSON(stdhttp.StatusOK, st), nil
	}

	res, err := h.svc.Page(r.Context(), p)
	if err != nil {
		return nil, err
	}
	return httpkit.BareJSON(stdhttp.StatusOK, domain.StatementsPage{
		Statements: res.Statements,
		More:       moreLink(r.URL, res),
	}), nil
}

// swagger:route PUT /xAPI/statements Statements statementsPut
// @Summary Store a single statement under a caller-chosen id
// @Tags Statements
// @Accept json
// @Param statementId query string true "Statement id"
// @Success 204 "stored"
// @Router /xAPI/statements [put]
func (h *handlers) put(r *stdhttp.Request) (any, error) {
	id := r.URL.Query().Get("statementId")
	if id == "" {
		return nil, perr.WithField(perr.Validationf("statementId is required"), "statementId")
	}

	var st xapi.Statement
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		return nil, perr.Validationf("malformed statement body")
	}
	if sid := st.ID(); sid != "" && sid != id {
		return nil, perr.Validationf("statement id %q does not match statementId %q", sid, id)
	}
	st.SetID(id)
	stampAuthority(r, []xapi.Statement{st})

	if _, err := h.svc.Ingest(r.Context(), []xapi.Statement{st}); err != nil {
		return nil, err
	}
	return httpkit.NoContent(), nil
}

// swagger:route POST /xAPI/statements Statements statementsPost
// @Summary Store one statement or a batch
// @Tags Statements
// @Accept json
// @Produce json
// @Success 200 {array} string "stored ids"
// @Router /xAPI/statements [post]
func (h *handlers) post(r *stdhttp.Request) (any, error) {
	statements, err := decodeStatements(r.Body)
	if err != nil {
		return nil, err
	}
	stampAuthority(r, statements)
	ids, err := h.svc.Ingest(r.Context(), statements)
	if err != nil {
		return nil, err
	}
	return httpkit.BareJSON(stdhttp.StatusOK, ids), nil
}

// decodeStatements accepts either a single statement object or an array
func decodeStatements(body io.Reader) ([]xapi.Statement, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, perr.Validationf("unreadable request body")
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, perr.Validationf("empty request body")
	}
	if raw[0] == '[' {
		var many []xapi.Statement
		if err := json.Unmarshal(raw, &many); err != nil {
			return nil, perr.Validationf("malformed statement array")
		}
		return many, nil
	}
	var one xapi.Statement
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, perr.Validationf("malformed statement body")
	}
	return []xapi.Statement{one}, nil
}

// moreLink rebuilds the request URL with the next-page cursor attached.
// Empty means the backend returned no cursor, which ends pagination
func moreLink(u *url.URL, res *lrs.QueryResult) string {
	if res == nil || res.SearchAfter == "" {
		return ""
	}
	q := u.Query()
	q.Set("search_after", res.SearchAfter)
	if res.PITID != "" {
		q.Set("pit_id", res.PITID)
	} else {
		q.Del("pit_id")
	}
	next := *u
	next.RawQuery = q.Encode()
	return next.String()
}
