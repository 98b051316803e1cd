// Package lrs defines the statement-query model shared by every storage
// backend: validated query parameters, the agent identifier matcher, the
// result page shape, and the Backend facade the HTTP layer talks to
package lrs

import (
	"net/url"
	"strconv"
	"time"

	perr "lrsgate/internal/platform/errors"
	"lrsgate/internal/platform/net/http/bind"
	"lrsgate/internal/xapi"

	"github.com/google/uuid"
)

// DefaultPageSize is the page size applied when Limit is zero
const DefaultPageSize = 100

// QueryParams is the canonical, validated form of a statement query.
// Zero values mean "not filtered"; Limit zero means the backend default
type QueryParams struct {
	StatementID       string
	VoidedStatementID string

	Agent     *AgentID
	Authority *AgentID

	Verb     string `json:"verb" validate:"omitempty,iri"`
	Activity string `json:"activity" validate:"omitempty,iri"`

	Registration string

	RelatedActivities bool
	RelatedAgents     bool

	Since time.Time
	Until time.Time

	Limit     int `json:"limit" validate:"min=0"`
	Ascending bool

	// IgnoreOrder waives the timestamp ordering guarantee so a
	// search-engine backend may paginate on its fastest internal key.
	// Backends without such a fast path treat it as a no-op
	IgnoreOrder bool

	SearchAfter string
	PITID       string
}

// EffectiveLimit resolves Limit against the default page size
func (p QueryParams) EffectiveLimit() int {
	if p.Limit > 0 {
		return p.Limit
	}
	return DefaultPageSize
}

// IDOnly reports whether the query targets a single statement by id
func (p QueryParams) IDOnly() bool {
	return p.StatementID != "" || p.VoidedStatementID != ""
}

// TargetID returns whichever single-statement id is set
func (p QueryParams) TargetID() string {
	if p.StatementID != "" {
		return p.StatementID
	}
	return p.VoidedStatementID
}

// queryKeys is the closed query-string schema. Anything else is a
// validation failure rather than a silently ignored typo
var queryKeys = map[string]struct{}{
	"statementId":        {},
	"voidedStatementId":  {},
	"agent":              {},
	"authority":          {},
	"verb":               {},
	"activity":           {},
	"registration":       {},
	"related_activities": {},
	"related_agents":     {},
	"since":              {},
	"until":              {},
	"limit":              {},
	"ascending":          {},
	"ignore_order":       {},
	"search_after":       {},
	"pit_id":             {},
}

// FromValues parses and validates query-string values into QueryParams.
// Unknown keys, malformed timestamps, booleans, UUIDs, agents, and invalid
// parameter combinations all surface as ErrorCodeValidation
func FromValues(vals url.Values) (QueryParams, error) {
	var p QueryParams

	for k := range vals {
		if _, ok := queryKeys[k]; !ok {
			return p, perr.WithField(perr.Validationf("unknown query parameter %q", k), k)
		}
	}

	p.StatementID = vals.Get("statementId")
	p.VoidedStatementID = vals.Get("voidedStatementId")
	p.Verb = xapi.NormalizeIRI(vals.Get("verb"))
	p.Activity = xapi.NormalizeIRI(vals.Get("activity"))
	p.Registration = vals.Get("registration")
	p.SearchAfter = vals.Get("search_after")
	p.PITID = vals.Get("pit_id")

	var err error
	if p.Agent, err = parseAgentValue(vals.Get("agent"), "agent"); err != nil {
		return p, err
	}
	if p.Authority, err = parseAgentValue(vals.Get("authority"), "authority"); err != nil {
		return p, err
	}

	if p.RelatedActivities, err = parseBool(vals.Get("related_activities"), "related_activities"); err != nil {
		return p, err
	}
	if p.RelatedAgents, err = parseBool(vals.Get("related_agents"), "related_agents"); err != nil {
		return p, err
	}
	if p.Ascending, err = parseBool(vals.Get("ascending"), "ascending"); err != nil {
		return p, err
	}
	if p.IgnoreOrder, err = parseBool(vals.Get("ignore_order"), "ignore_order"); err != nil {
		return p, err
	}

	if p.Since, err = parseTimestamp(vals.Get("since"), "since"); err != nil {
		return p, err
	}
	if p.Until, err = parseTimestamp(vals.Get("until"), "until"); err != nil {
		return p, err
	}

	if s := vals.Get("limit"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil || n < 0 {
			return p, perr.WithField(perr.Validationf("limit must be a non-negative integer"), "limit")
		}
		p.Limit = n
	}

	return p, p.Validate()
}

// Validate enforces the cross-field rules FromValues cannot express per key
func (p QueryParams) Validate() error {
	if p.StatementID != "" && p.VoidedStatementID != "" {
		return perr.Validationf("statementId and voidedStatementId are mutually exclusive")
	}
	if p.IDOnly() {
		// a single-statement fetch admits no other filters
		if p.Agent != nil || p.Authority != nil || p.Verb != "" || p.Activity != "" ||
			p.Registration != "" || !p.Since.IsZero() || !p.Until.IsZero() {
			return perr.Validationf("statementId cannot be combined with other filters")
		}
	}
	if p.Registration != "" {
		if _, err := uuid.Parse(p.Registration); err != nil {
			return perr.WithField(perr.Validationf("registration must be a UUID"), "registration")
		}
	}
	if p.Agent != nil {
		if err := p.Agent.Validate(); err != nil {
			return perr.WithField(err, "agent")
		}
	}
	if p.Authority != nil {
		if err := p.Authority.Validate(); err != nil {
			return perr.WithField(err, "authority")
		}
	}

	if err := bind.Get().Validator.Struct(p); err != nil {
		field, msg := bind.ValidationFieldAndMessage(err)
		return perr.WithField(perr.Validationf("%s", msg), field)
	}
	return nil
}

func parseBool(s, field string) (bool, error) {
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, perr.WithField(perr.Validationf("%s must be a boolean", field), field)
	}
	return v, nil
}

func parseTimestamp(s, field string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return time.Time{}, perr.WithField(
				perr.Validationf("%s must be an RFC 3339 timestamp", field), field)
		}
	}
	return t, nil
}

func parseAgentValue(s, field string) (*AgentID, error) {
	if s == "" {
		return nil, nil
	}
	a, err := ParseAgentJSON([]byte(s))
	if err != nil {
		return nil, perr.WithField(err, field)
	}
	return a, nil
}
