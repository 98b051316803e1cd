// Package xapi holds the minimal statement model the gateway needs.
// Statements are opaque JSON mappings owned by the emitting systems; this
// package only understands the handful of fields querying and ingestion
// touch: id, timestamp, stored, and the agent-bearing sub-objects
package xapi

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Statement is one learning-event record as an opaque mapping
type Statement map[string]any

// ObjectType values that identify an agent-like statement object
const (
	ObjectTypeAgent        = "Agent"
	ObjectTypeGroup        = "Group"
	ObjectTypeSubStatement = "SubStatement"
	ObjectTypeActivity     = "Activity"
)

// ID returns the statement id or empty
func (s Statement) ID() string {
	v, _ := s["id"].(string)
	return v
}

// SetID assigns the statement id
func (s Statement) SetID(id string) { s["id"] = id }

// NewID returns a fresh server-assigned statement id
func NewID() string { return uuid.NewString() }

// Timestamp returns the statement timestamp when present and well-formed
func (s Statement) Timestamp() (time.Time, bool) {
	return parseTime(s["timestamp"])
}

// Stored returns the stored time when present and well-formed
func (s Statement) Stored() (time.Time, bool) {
	return parseTime(s["stored"])
}

// SetStored stamps the stored time in RFC 3339 with sub-second precision
func (s Statement) SetStored(t time.Time) {
	s["stored"] = t.UTC().Format(time.RFC3339Nano)
}

// SetTimestamp stamps the event timestamp
func (s Statement) SetTimestamp(t time.Time) {
	s["timestamp"] = t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v any) (time.Time, bool) {
	str, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		// seconds precision fallback
		if t, err = time.Parse(time.RFC3339, str); err != nil {
			return time.Time{}, false
		}
	}
	return t, true
}

// At walks nested maps along path and returns the mapping found there
func (s Statement) At(path ...string) (map[string]any, bool) {
	cur := map[string]any(s)
	for _, p := range path {
		next, ok := cur[p].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// VerbID returns verb.id or empty
func (s Statement) VerbID() string {
	if v, ok := s.At("verb"); ok {
		id, _ := v["id"].(string)
		return id
	}
	return ""
}

// Registration returns context.registration or empty
func (s Statement) Registration() string {
	if c, ok := s.At("context"); ok {
		r, _ := c["registration"].(string)
		return r
	}
	return ""
}

// Prepare stamps the server-assigned id and stored time where absent.
// Ingestion calls this once per statement before handing off to a store
func Prepare(s Statement) {
	if s.ID() == "" {
		s.SetID(NewID())
	}
	if _, ok := s.Stored(); !ok {
		s.SetStored(time.Now())
	}
}

// NormalizeIRI NFC-normalizes an IRI so byte-wise equality in each store
// matches IRI equality
func NormalizeIRI(iri string) string { return norm.NFC.String(iri) }
