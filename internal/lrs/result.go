package lrs

import "lrsgate/internal/xapi"

// QueryResult is one page of statements plus the cursor for the next page.
// An empty page carries empty cursor fields, meaning no further pages
type QueryResult struct {
	Statements  []xapi.Statement
	SearchAfter string
	PITID       string
}

// NewResult assembles a page. Cursor values are dropped when the page is
// empty so a caller never chases a cursor past the end
func NewResult(statements []xapi.Statement, searchAfter, pitID string) *QueryResult {
	if len(statements) == 0 {
		return &QueryResult{Statements: []xapi.Statement{}}
	}
	return &QueryResult{Statements: statements, SearchAfter: searchAfter, PITID: pitID}
}

// Empty reports whether the page holds no statements
func (r *QueryResult) Empty() bool { return r == nil || len(r.Statements) == 0 }
