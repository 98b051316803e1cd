package fs

import (
	"lrsgate/internal/lrs"
	"lrsgate/internal/xapi"
)

// predicate translates QueryParams into a pure closure applied during the
// archive scan. Filters are conjunctive; agent and activity filters OR only
// across their related-path expansion
func predicate(p lrs.QueryParams) func(xapi.Statement) bool {
	return func(s xapi.Statement) bool {
		if p.IDOnly() && s.ID() != p.TargetID() {
			return false
		}
		if p.Verb != "" && xapi.NormalizeIRI(s.VerbID()) != p.Verb {
			return false
		}
		if p.Registration != "" && s.Registration() != p.Registration {
			return false
		}
		if p.Activity != "" && !activityMatches(s, p) {
			return false
		}
		if p.Agent != nil && !agentMatches(s, p.Agent.IFI(), p.RelatedAgents) {
			return false
		}
		if p.Authority != nil && !xapi.AgentAt(s, xapi.AuthorityPath, p.Authority.IFI()) {
			return false
		}
		if !p.Since.IsZero() || !p.Until.IsZero() {
			ts, ok := s.Timestamp()
			if !ok {
				return false
			}
			if !p.Since.IsZero() && !ts.After(p.Since) {
				return false
			}
			if !p.Until.IsZero() && ts.After(p.Until) {
				return false
			}
		}
		return true
	}
}

func agentMatches(s xapi.Statement, ifi xapi.IFI, related bool) bool {
	for _, path := range xapi.AgentPaths(related) {
		if xapi.AgentAt(s, path, ifi) {
			return true
		}
	}
	return false
}

func activityMatches(s xapi.Statement, p lrs.QueryParams) bool {
	for _, path := range xapi.ActivityPaths(p.RelatedActivities) {
		if xapi.ActivityAt(s, path, p.Activity) {
			return true
		}
	}
	return false
}
