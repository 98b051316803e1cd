package remote

import (
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"lrsgate/internal/lrs"
	perr "lrsgate/internal/platform/errors"
)

// values renders QueryParams back into the xAPI query-string vocabulary
// the downstream LRS speaks
func values(p lrs.QueryParams) (url.Values, error) {
	v := url.Values{}

	setIf := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	setIf("statementId", p.StatementID)
	setIf("voidedStatementId", p.VoidedStatementID)
	setIf("verb", p.Verb)
	setIf("activity", p.Activity)
	setIf("registration", p.Registration)

	if p.Agent != nil {
		raw, err := json.Marshal(p.Agent.XAPIObject())
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeBackend, "encode agent filter")
		}
		v.Set("agent", string(raw))
	}
	if p.Authority != nil {
		// the xAPI query vocabulary has no authority filter; refusing is
		// better than silently returning unfiltered rows
		return nil, perr.BackendParamf("authority filtering is not supported by this backend")
	}

	if p.RelatedActivities {
		v.Set("related_activities", "true")
	}
	if p.RelatedAgents {
		v.Set("related_agents", "true")
	}
	if !p.Since.IsZero() {
		v.Set("since", p.Since.UTC().Format(time.RFC3339Nano))
	}
	if !p.Until.IsZero() {
		v.Set("until", p.Until.UTC().Format(time.RFC3339Nano))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Ascending {
		v.Set("ascending", "true")
	}
	return v, nil
}
