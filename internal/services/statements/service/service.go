// Package service contains statement query and ingestion workflows
package service

import (
	"context"

	"lrsgate/internal/lrs"
	perr "lrsgate/internal/platform/errors"
	"lrsgate/internal/services/statements/domain"
	"lrsgate/internal/xapi"
)

// Service defines the service contract for statements
type Service interface{ domain.ServicePort }

// Svc implements the Service interface
type Svc struct {
	backend lrs.Backend
}

// New creates a new statements service
func New(backend lrs.Backend) *Svc {
	if backend == nil {
		panic("statements.Service requires a non nil Backend")
	}
	return &Svc{backend: backend}
}

// Page runs a filtered statement query against the configured backend
func (s *Svc) Page(ctx context.Context, p lrs.QueryParams) (*lrs.QueryResult, error) {
	return s.backend.Query(ctx, p)
}

// Get fetches a single statement by id. The by-ids path is the one lookup
// every backend supports uniformly, including the remote forwarder
func (s *Svc) Get(ctx context.Context, id string) (xapi.Statement, error) {
	found, err := s.backend.QueryByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, perr.NotFoundf("statement %q not found", id)
	}
	return found[0], nil
}

// Ingest stamps server-assigned ids and stored times where absent, persists
// the batch, and returns the stored ids in input order
func (s *Svc) Ingest(ctx context.Context, statements []xapi.Statement) ([]string, error) {
	if len(statements) == 0 {
		return nil, perr.Validationf("no statements to store")
	}
	ids := make([]string, 0, len(statements))
	for _, st := range statements {
		xapi.Prepare(st)
		ids = append(ids, st.ID())
	}
	if _, err := s.backend.Write(ctx, statements); err != nil {
		return nil, err
	}
	return ids, nil
}
