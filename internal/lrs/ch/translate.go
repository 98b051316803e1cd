package ch

import (
	"strconv"
	"strings"
	"time"

	"lrsgate/internal/lrs"
	perr "lrsgate/internal/platform/errors"
	"lrsgate/internal/xapi"

	"github.com/google/uuid"
)

// chQuery is the backend-native descriptor: WHERE fragments with their
// bound arguments plus direction and limit. Building it does no I/O
type chQuery struct {
	where []string
	args  []any
	desc  bool
	limit int
}

// translate maps QueryParams onto ClickHouse predicates over the raw event
func translate(p lrs.QueryParams) (chQuery, error) {
	q := chQuery{desc: !p.Ascending, limit: p.EffectiveLimit()}

	if p.IDOnly() {
		if _, err := uuid.Parse(p.TargetID()); err != nil {
			// a non-UUID id cannot exist in a UUID column
			q.where = append(q.where, "1 = 0")
		} else {
			q.where = append(q.where, "event_id = ?")
			q.args = append(q.args, p.TargetID())
		}
	}
	if p.Verb != "" {
		q.where = append(q.where, jsonEq("verb", "id"))
		q.args = append(q.args, p.Verb)
	}
	if p.Registration != "" {
		q.where = append(q.where, jsonEq("context", "registration"))
		q.args = append(q.args, p.Registration)
	}
	if !p.Since.IsZero() {
		q.where = append(q.where, "emission_time > ?")
		q.args = append(q.args, p.Since.UTC())
	}
	if !p.Until.IsZero() {
		q.where = append(q.where, "emission_time <= ?")
		q.args = append(q.args, p.Until.UTC())
	}
	if p.Agent != nil {
		q.appendGroups(lrs.AgentClauses(p.Agent, p.RelatedAgents))
	}
	if p.Authority != nil {
		q.appendGroups(lrs.AuthorityClauses(p.Authority))
	}
	if p.Activity != "" {
		q.appendActivity(p.Activity, p.RelatedActivities)
	}

	ts, id, err := decodeCursor(p.SearchAfter, p.PITID)
	if err != nil {
		return q, err
	}
	if !ts.IsZero() {
		cmp := ">"
		if q.desc {
			cmp = "<"
		}
		if id != "" {
			q.where = append(q.where,
				"((emission_time "+cmp+" ?) OR (emission_time = ? AND event_id "+cmp+" ?))")
			q.args = append(q.args, ts, ts, id)
		} else {
			// no tie-break id: degrade to a timestamp-only boundary
			q.where = append(q.where, "emission_time "+cmp+" ?")
			q.args = append(q.args, ts)
		}
	}

	return q, nil
}

// SQL renders the final statement with ORDER BY and LIMIT
func (q chQuery) SQL() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT event_id, emission_time, event FROM statements")
	if len(q.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(q.where, " AND "))
	}
	dir := "ASC"
	if q.desc {
		dir = "DESC"
	}
	sb.WriteString(" ORDER BY emission_time " + dir + ", event_id " + dir)
	sb.WriteString(" LIMIT ?")
	return sb.String(), append(q.args, q.limit)
}

// appendGroups ANDs one OR-joined block: each group is a conjunction of
// field equalities, groups disjoin across the related-path expansion
func (q *chQuery) appendGroups(groups [][]lrs.FieldMatch) {
	if len(groups) == 0 {
		return
	}
	alts := make([]string, 0, len(groups))
	for _, group := range groups {
		conj := make([]string, 0, len(group))
		for _, m := range group {
			conj = append(conj, jsonEq(strings.Split(m.Path, ".")...))
			q.args = append(q.args, m.Value)
		}
		alts = append(alts, "("+strings.Join(conj, " AND ")+")")
	}
	q.where = append(q.where, "("+strings.Join(alts, " OR ")+")")
}

// appendActivity matches the activity id at every relevant object path.
// contextActivities entries may be a single object or a list, so list
// paths check both shapes
func (q *chQuery) appendActivity(activityID string, related bool) {
	paths := xapi.ActivityPaths(related)
	alts := make([]string, 0, len(paths))
	for _, path := range paths {
		if last := path[len(path)-1]; last == "object" {
			alts = append(alts, "("+jsonEq(append(path, "id")...)+
				" AND "+jsonPath(append(path, "objectType")...)+" IN ('', 'Activity'))")
			q.args = append(q.args, activityID)
			continue
		}
		alts = append(alts,
			"(arrayExists(x -> JSONExtractString(x, 'id') = ?, "+jsonArray(path...)+")"+
				" OR "+jsonEq(append(path, "id")...)+")")
		q.args = append(q.args, activityID, activityID)
	}
	q.where = append(q.where, "("+strings.Join(alts, " OR ")+")")
}

func jsonPath(keys ...string) string {
	return "JSONExtractString(event, " + quoteKeys(keys) + ")"
}

func jsonEq(keys ...string) string { return jsonPath(keys...) + " = ?" }

func jsonArray(keys ...string) string {
	return "JSONExtractArrayRaw(event, " + quoteKeys(keys) + ")"
}

func quoteKeys(keys []string) string {
	quoted := make([]string, 0, len(keys))
	for _, k := range keys {
		quoted = append(quoted, "'"+k+"'")
	}
	return strings.Join(quoted, ", ")
}

// Cursor codec: the composite key travels as two opaque values, the last
// row timestamp in search_after (epoch microseconds) and the last row
// event id in pit_id. A cursor without the id is valid and degrades to a
// timestamp-only boundary; an id without a timestamp is meaningless

func encodeCursor(ts time.Time, id string) (searchAfter, pitID string) {
	if id == "" {
		return "", ""
	}
	return strconv.FormatInt(ts.UnixMicro(), 10), id
}

func decodeCursor(searchAfter, pitID string) (time.Time, string, error) {
	if searchAfter == "" && pitID == "" {
		return time.Time{}, "", nil
	}
	if searchAfter == "" {
		return time.Time{}, "", perr.BackendParamf("pit_id requires a search_after cursor")
	}
	micros, err := strconv.ParseInt(searchAfter, 10, 64)
	if err != nil {
		return time.Time{}, "", perr.BackendParamf("malformed search_after cursor")
	}
	if pitID != "" {
		if _, err := uuid.Parse(pitID); err != nil {
			return time.Time{}, "", perr.BackendParamf("malformed pit_id cursor")
		}
	}
	return time.UnixMicro(micros).UTC(), pitID, nil
}
