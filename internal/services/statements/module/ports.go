package module

import (
	"context"

	"lrsgate/internal/lrs"
	stmtdom "lrsgate/internal/services/statements/domain"
	stmtsvc "lrsgate/internal/services/statements/service"
	"lrsgate/internal/xapi"
)

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// adaptStatementsPort adapts the statements service to the domain port interface
type adaptStatementsPort struct{ svc stmtsvc.Service }

var _ stmtdom.ServicePort = adaptStatementsPort{}

// Page implements the domain ServicePort interface
func (a adaptStatementsPort) Page(ctx context.Context, p lrs.QueryParams) (*lrs.QueryResult, error) {
	return a.svc.Page(ctx, p)
}

// Get implements the domain ServicePort interface
func (a adaptStatementsPort) Get(ctx context.Context, id string) (xapi.Statement, error) {
	return a.svc.Get(ctx, id)
}

// Ingest implements the domain ServicePort interface
func (a adaptStatementsPort) Ingest(ctx context.Context, statements []xapi.Statement) ([]string, error) {
	return a.svc.Ingest(ctx, statements)
}
