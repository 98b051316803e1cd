package domain

import (
	"context"

	"lrsgate/internal/lrs"
	"lrsgate/internal/xapi"
)

// ServicePort defines the service contract for statements
type ServicePort interface {
	// Page runs a filtered, paginated query
	Page(ctx context.Context, p lrs.QueryParams) (*lrs.QueryResult, error)

	// Get fetches one statement by id
	Get(ctx context.Context, id string) (xapi.Statement, error)

	// Ingest stamps and persists a batch, returning the stored ids in order
	Ingest(ctx context.Context, statements []xapi.Statement) ([]string, error)
}
