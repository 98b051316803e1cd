package mongo

import (
	"strings"

	"lrsgate/internal/lrs"
	perr "lrsgate/internal/platform/errors"
	"lrsgate/internal/xapi"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Documents wrap the raw statement under "statement" with the insertion
// ObjectId as _id and a typed emission timestamp for range filters
const (
	fieldStatement = "statement"
	fieldTimestamp = "timestamp"
)

// mongoQuery is the backend-native descriptor: a filter document plus
// sort direction and limit
type mongoQuery struct {
	filter bson.D
	desc   bool
	limit  int
}

func stmtField(path string) string { return fieldStatement + "." + path }

// translate maps QueryParams onto a find filter. Filters are conjunctive;
// agent and activity clauses OR only inside their own $or document
func translate(p lrs.QueryParams) (mongoQuery, error) {
	q := mongoQuery{desc: !p.Ascending, limit: p.EffectiveLimit()}

	if p.IDOnly() {
		q.filter = append(q.filter, bson.E{Key: stmtField("id"), Value: p.TargetID()})
	}
	if p.Verb != "" {
		q.filter = append(q.filter, bson.E{Key: stmtField("verb.id"), Value: p.Verb})
	}
	if p.Registration != "" {
		q.filter = append(q.filter, bson.E{Key: stmtField("context.registration"), Value: p.Registration})
	}
	if !p.Since.IsZero() || !p.Until.IsZero() {
		// one range document per key; duplicate keys in a filter are
		// formally undefined
		rng := bson.M{}
		if !p.Since.IsZero() {
			rng["$gt"] = p.Since.UTC()
		}
		if !p.Until.IsZero() {
			rng["$lte"] = p.Until.UTC()
		}
		q.filter = append(q.filter, bson.E{Key: fieldTimestamp, Value: rng})
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

	cursor, err := decodeCursor(p.SearchAfter, p.PITID)
	if err != nil {
		return q, err
	}
	if !cursor.IsZero() {
		cmp := "$gt"
		if q.desc {
			cmp = "$lt"
		}
		q.filter = append(q.filter, bson.E{Key: "_id", Value: bson.M{cmp: cursor}})
	}

	return q, nil
}

// Filter returns the find filter, normalizing empty to the match-all document
func (q mongoQuery) Filter() bson.D {
	if len(q.filter) == 0 {
		return bson.D{}
	}
	return q.filter
}

// Sort orders on _id alone: ObjectIds encode insertion order, which is
// also the cursor boundary key
func (q mongoQuery) Sort() bson.D {
	dir := 1
	if q.desc {
		dir = -1
	}
	return bson.D{{Key: "_id", Value: dir}}
}

// orGroups renders path groups as an $or of per-path conjunctions
func orGroups(groups [][]lrs.FieldMatch) bson.E {
	alts := make(bson.A, 0, len(groups))
	for _, group := range groups {
		conj := bson.D{}
		for _, m := range group {
			conj = append(conj, bson.E{Key: stmtField(m.Path), Value: m.Value})
		}
		alts = append(alts, conj)
	}
	return bson.E{Key: "$or", Value: alts}
}

// activityClause matches the activity id at every relevant object path.
// Dotted paths traverse arrays natively, so contextActivities lists and
// single objects share one predicate; statement objects get a type guard
func activityClause(activityID string, related bool) bson.E {
	paths := xapi.ActivityPaths(related)
	alts := make(bson.A, 0, len(paths))
	for _, path := range paths {
		base := stmtField(strings.Join(path, "."))
		if path[len(path)-1] != "object" {
			alts = append(alts, bson.D{{Key: base + ".id", Value: activityID}})
			continue
		}
		alts = append(alts, bson.D{
			{Key: base + ".id", Value: activityID},
			{Key: base + ".objectType", Value: bson.M{"$nin": bson.A{
				xapi.ObjectTypeAgent, xapi.ObjectTypeGroup, xapi.ObjectTypeSubStatement,
			}}},
		})
	}
	return bson.E{Key: "$or", Value: alts}
}

// Cursor codec: the opaque cursor is the hex _id of the last row; Mongo
// needs no point-in-time handle so pit_id must stay empty

func encodeCursor(last primitive.ObjectID) string {
	if last.IsZero() {
		return ""
	}
	return last.Hex()
}

func decodeCursor(searchAfter, pitID string) (primitive.ObjectID, error) {
	if pitID != "" {
		return primitive.NilObjectID, perr.BackendParamf("pit_id is not supported by this backend")
	}
	if searchAfter == "" {
		return primitive.NilObjectID, nil
	}
	id, err := primitive.ObjectIDFromHex(searchAfter)
	if err != nil {
		return primitive.NilObjectID, perr.BackendParamf("malformed search_after cursor")
	}
	return id, nil
}
