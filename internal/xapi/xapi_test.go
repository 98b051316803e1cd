package xapi

import (
	"encoding/json"
	"testing"
	"time"
)

func mustStatement(t *testing.T, raw string) Statement {
	t.Helper()
	var s Statement
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return s
}

func TestIDAndStored(t *testing.T) {
	s := Statement{}
	if s.ID() != "" {
		t.Fatalf("empty statement should have no id")
	}
	s.SetID("abc")
	if s.ID() != "abc" {
		t.Fatalf("ID = %q", s.ID())
	}
	now := time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC)
	s.SetStored(now)
	got, ok := s.Stored()
	if !ok || !got.Equal(now) {
		t.Fatalf("Stored = %v ok=%v", got, ok)
	}
}

func TestTimestampParsing(t *testing.T) {
	s := Statement{"timestamp": "2024-03-01T10:30:00Z"}
	ts, ok := s.Timestamp()
	if !ok || ts.Hour() != 10 {
		t.Fatalf("Timestamp = %v ok=%v", ts, ok)
	}
	s = Statement{"timestamp": "not-a-time"}
	if _, ok := s.Timestamp(); ok {
		t.Fatalf("garbage timestamp should not parse")
	}
	s = Statement{"timestamp": 42}
	if _, ok := s.Timestamp(); ok {
		t.Fatalf("non-string timestamp should not parse")
	}
}

func TestVerbAndRegistration(t *testing.T) {
	s := mustStatement(t, `{
		"verb": {"id": "http://adlnet.gov/expapi/verbs/completed"},
		"context": {"registration": "11111111-2222-3333-4444-555555555555"}
	}`)
	if s.VerbID() != "http://adlnet.gov/expapi/verbs/completed" {
		t.Fatalf("VerbID = %q", s.VerbID())
	}
	if s.Registration() != "11111111-2222-3333-4444-555555555555" {
		t.Fatalf("Registration = %q", s.Registration())
	}
	if (Statement{}).VerbID() != "" || (Statement{}).Registration() != "" {
		t.Fatalf("missing fields should be empty")
	}
}

func TestAgentHasIFI(t *testing.T) {
	actor := map[string]any{"mbox": "mailto:kim@example.com", "name": "Kim"}
	if !AgentHasIFI(actor, IFI{Kind: IFIMbox, Value: "mailto:kim@example.com"}) {
		t.Fatalf("mbox should match")
	}
	if AgentHasIFI(actor, IFI{Kind: IFIMbox, Value: "mailto:other@example.com"}) {
		t.Fatalf("different mbox should not match")
	}
	if AgentHasIFI(actor, IFI{Kind: IFIOpenID, Value: "mailto:kim@example.com"}) {
		t.Fatalf("kind mismatch should not match")
	}

	acct := map[string]any{"account": map[string]any{"name": "foo_name", "homePage": "foo_home"}}
	if !AgentHasIFI(acct, IFI{Kind: IFIAccount, Value: "foo_name", HomePage: "foo_home"}) {
		t.Fatalf("account pair should match")
	}
	if AgentHasIFI(acct, IFI{Kind: IFIAccount, Value: "bar_name", HomePage: "foo_home"}) {
		t.Fatalf("different account name should not match")
	}
	if AgentHasIFI(nil, IFI{Kind: IFIMbox, Value: "x"}) {
		t.Fatalf("nil object should not match")
	}
}

func TestAgentPathsExpansion(t *testing.T) {
	if got := len(AgentPaths(false)); got != 1 {
		t.Fatalf("primary paths = %d, want 1", got)
	}
	if got := len(AgentPaths(true)); got != 8 {
		t.Fatalf("related paths = %d, want 8", got)
	}
}

func TestAgentAtSubStatement(t *testing.T) {
	s := mustStatement(t, `{
		"actor": {"mbox": "mailto:teacher@example.com"},
		"object": {
			"objectType": "SubStatement",
			"actor": {"mbox": "mailto:student@example.com"},
			"object": {"objectType": "Agent", "openid": "http://openid.example.com/student"},
			"context": {"instructor": {"mbox_sha1sum": "da39a3ee5e6b4b0d3255bfef95601890afd80709"}}
		}
	}`)

	ifi := IFI{Kind: IFIMbox, Value: "mailto:student@example.com"}
	found := false
	for _, p := range AgentPaths(true) {
		if AgentAt(s, p, ifi) {
			found = true
		}
	}
	if !found {
		t.Fatalf("sub-statement actor should be reachable via related paths")
	}
	if AgentAt(s, []string{"actor"}, ifi) {
		t.Fatalf("primary actor path should not match the sub-statement actor")
	}
	if !AgentAt(s, []string{"object", "context", "instructor"},
		IFI{Kind: IFIMboxSHA1, Value: "da39a3ee5e6b4b0d3255bfef95601890afd80709"}) {
		t.Fatalf("sub-statement instructor should match by sha1")
	}
}

func TestActivityAt(t *testing.T) {
	s := mustStatement(t, `{
		"object": {"objectType": "Activity", "id": "http://example.com/course/1"},
		"context": {"contextActivities": {
			"parent": [{"id": "http://example.com/course/parent"}],
			"category": {"id": "http://example.com/profile/cmi5"}
		}}
	}`)

	if !ActivityAt(s, []string{"object"}, "http://example.com/course/1") {
		t.Fatalf("object activity should match")
	}
	if ActivityAt(s, []string{"object"}, "http://example.com/other") {
		t.Fatalf("different id should not match")
	}
	// list-shaped contextActivities
	if !ActivityAt(s, []string{"context", "contextActivities", "parent"}, "http://example.com/course/parent") {
		t.Fatalf("parent list should match")
	}
	// single-object contextActivities
	if !ActivityAt(s, []string{"context", "contextActivities", "category"}, "http://example.com/profile/cmi5") {
		t.Fatalf("category object should match")
	}
}

func TestActivityAtRejectsAgentObject(t *testing.T) {
	s := mustStatement(t, `{"object": {"objectType": "Agent", "id": "http://example.com/who"}}`)
	if ActivityAt(s, []string{"object"}, "http://example.com/who") {
		t.Fatalf("agent object must not satisfy an activity filter")
	}
}

func TestNormalizeIRI(t *testing.T) {
	// e + combining acute vs precomposed e-acute
	decomposed := "http://example.com/caf\u0065\u0301"
	precomposed := "http://example.com/caf\u00e9"
	if decomposed == precomposed {
		t.Fatalf("fixtures should differ byte-wise")
	}
	if NormalizeIRI(decomposed) != NormalizeIRI(precomposed) {
		t.Fatalf("NFC forms should compare equal after normalization")
	}
}
