package es

import (
	"strings"

	"lrsgate/internal/lrs"
	perr "lrsgate/internal/platform/errors"
	"lrsgate/internal/xapi"
)

// esQuery is the backend-native descriptor: a bool clause tree plus sort
// and cursor, serialized to the search DSL only at the executor boundary
type esQuery struct {
	filter      []map[string]any
	ascending   bool
	ignoreOrder bool
	limit       int
	searchAfter []any
	pit         string
}

// keyword suffixes a mapped text path for exact matching
func keyword(path string) string { return path + ".keyword" }

func term(path, value string) map[string]any {
	return map[string]any{"term": map[string]any{keyword(path): value}}
}

// translate maps QueryParams onto filter clauses. Filters are conjunctive;
// agent and activity clauses OR only inside their own bool block
func translate(p lrs.QueryParams) (esQuery, error) {
	q := esQuery{
		ascending:   p.Ascending,
		ignoreOrder: p.IgnoreOrder,
		limit:       p.EffectiveLimit(),
		pit:         p.PITID,
	}

	if p.IDOnly() {
		q.filter = append(q.filter, map[string]any{
			"ids": map[string]any{"values": []string{p.TargetID()}},
		})
	}
	if p.Verb != "" {
		q.filter = append(q.filter, term("verb.id", p.Verb))
	}
	if p.Registration != "" {
		q.filter = append(q.filter, term("context.registration", p.Registration))
	}
	if !p.Since.IsZero() || !p.Until.IsZero() {
		rng := map[string]any{}
		if !p.Since.IsZero() {
			rng["gt"] = p.Since.UTC()
		}
		if !p.Until.IsZero() {
			rng["lte"] = p.Until.UTC()
		}
		q.filter = append(q.filter, map[string]any{"range": map[string]any{"timestamp": rng}})
	}
	if p.Agent != nil {
		q.filter = append(q.filter, orGroups(lrs.AgentClauses(p.Agent, p.RelatedAgents)))
	}
	if p.Authority != nil {
		q.filter = append(q.filter, orGroups(lrs.AuthorityClauses(p.Authority)))
	}
	if p.Activity != "" {
		q.filter = append(q.filter, activityClause(p.Activity, p.RelatedActivities))
	}

	sa, err := decodeSearchAfter(p.SearchAfter)
	if err != nil {
		return q, err
	}
	q.searchAfter = sa

	return q, nil
}

// orGroups renders path groups as a should-of-musts bool block
func orGroups(groups [][]lrs.FieldMatch) map[string]any {
	should := make([]map[string]any, 0, len(groups))
	for _, group := range groups {
		must := make([]map[string]any, 0, len(group))
		for _, m := range group {
			must = append(must, term(m.Path, m.Value))
		}
		if len(must) == 1 {
			should = append(should, must[0])
			continue
		}
		should = append(should, map[string]any{
			"bool": map[string]any{"must": must},
		})
	}
	return map[string]any{
		"bool": map[string]any{"should": should, "minimum_should_match": 1},
	}
}

// activityClause matches the activity id at every relevant object path.
// Statement objects carry an objectType guard; contextActivities entries
// are always activities so their id term stands alone
func activityClause(activityID string, related bool) map[string]any {
	paths := xapi.ActivityPaths(related)
	should := make([]map[string]any, 0, len(paths))
	for _, path := range paths {
		base := strings.Join(path, ".")
		idTerm := term(base+".id", activityID)
		if path[len(path)-1] != "object" {
			should = append(should, idTerm)
			continue
		}
		should = append(should, map[string]any{
			"bool": map[string]any{
				"must": []map[string]any{idTerm},
				"must_not": []map[string]any{
					{"terms": map[string]any{keyword(base + ".objectType"): []string{
						xapi.ObjectTypeAgent, xapi.ObjectTypeGroup, xapi.ObjectTypeSubStatement,
					}}},
				},
			},
		})
	}
	return map[string]any{
		"bool": map[string]any{"should": should, "minimum_should_match": 1},
	}
}

// Body renders the final search request body.
// The tie-break rides the stamped statement id, not the _id metadata
// field: ES 8 ships with _id fielddata disabled, so sorting on _id is a
// request-level rejection. The ignore-order fast path drops the
// timestamp sort entirely and paginates on the point-in-time's implicit
// _shard_doc key
func (q esQuery) Body() map[string]any {
	dir := "desc"
	if q.ascending {
		dir = "asc"
	}
	sort := []map[string]any{
		{"timestamp": map[string]any{"order": dir}},
		{keyword("id"): map[string]any{"order": dir}},
	}
	if q.ignoreOrder {
		sort = []map[string]any{{"_shard_doc": map[string]any{"order": dir}}}
	}
	body := map[string]any{
		"size": q.limit,
		"query": map[string]any{
			"bool": map[string]any{"filter": q.filter},
		},
		"sort": sort,
	}
	if len(q.filter) == 0 {
		body["query"] = map[string]any{"match_all": map[string]any{}}
	}
	if len(q.searchAfter) > 0 {
		body["search_after"] = q.searchAfter
	}
	if q.pit != "" {
		body["pit"] = map[string]any{"id": q.pit, "keep_alive": pitKeepAlive}
	}
	return body
}

// Cursor codec: the native search_after is an array of sort values; it
// travels pipe-joined in the opaque cursor string

const cursorSep = "|"

func encodeSearchAfter(sort []any) string {
	if len(sort) == 0 {
		return ""
	}
	parts := make([]string, 0, len(sort))
	for _, v := range sort {
		parts = append(parts, toString(v))
	}
	return strings.Join(parts, cursorSep)
}

func decodeSearchAfter(cursor string) ([]any, error) {
	if cursor == "" {
		return nil, nil
	}
	parts := strings.Split(cursor, cursorSep)
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, perr.BackendParamf("malformed search_after cursor")
		}
		out = append(out, p)
	}
	return out, nil
}
