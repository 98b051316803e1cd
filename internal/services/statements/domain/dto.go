// Package domain holds DTOs for the statements http and service contracts
package domain

import "lrsgate/internal/xapi"

// StatementsPage is the wire shape of a statement query response
// More carries the URL of the next page and is empty on the last page
type StatementsPage struct {
	Statements []xapi.Statement `json:"statements"`
	More       string           `json:"more"`
}
