package xapi

// Inverse Functional Identifier handling. An agent is identified by exactly
// one of: mbox, mbox_sha1sum, openid, or an account name+homePage pair

// IFIKind enumerates the four identifier kinds
type IFIKind uint8

// IFI kinds in xAPI precedence order
const (
	IFINone IFIKind = iota
	IFIMbox
	IFIMboxSHA1
	IFIOpenID
	IFIAccount
)

// Field returns the agent sub-field the kind lives under
func (k IFIKind) Field() string {
	switch k {
	case IFIMbox:
		return "mbox"
	case IFIMboxSHA1:
		return "mbox_sha1sum"
	case IFIOpenID:
		return "openid"
	case IFIAccount:
		return "account"
	default:
		return ""
	}
}

// IFI is one resolved identifier: Value carries the mbox/sha1/openid string
// or the account name; HomePage is set only for IFIAccount
type IFI struct {
	Kind     IFIKind
	Value    string
	HomePage string
}

// AgentHasIFI reports whether obj (an Agent or Group mapping) carries the
// identifier. Non-agent objects simply lack the fields and never match
func AgentHasIFI(obj map[string]any, ifi IFI) bool {
	if obj == nil {
		return false
	}
	switch ifi.Kind {
	case IFIMbox, IFIMboxSHA1, IFIOpenID:
		v, _ := obj[ifi.Kind.Field()].(string)
		return v != "" && v == ifi.Value
	case IFIAccount:
		acct, _ := obj["account"].(map[string]any)
		if acct == nil {
			return false
		}
		name, _ := acct["name"].(string)
		home, _ := acct["homePage"].(string)
		return name == ifi.Value && home == ifi.HomePage
	default:
		return false
	}
}

// AuthorityPath is the role path for authority matching
var AuthorityPath = []string{"authority"}

// AgentPaths returns the role paths an agent filter inspects.
// The primary match is the actor; related expands to the statement object
// (when it is an Agent/Group), context instructor and team, and the same
// four positions inside an embedded sub-statement. Sub-statements cannot
// nest, so the expansion is a fixed list rather than a recursive walk
func AgentPaths(related bool) [][]string {
	paths := [][]string{{"actor"}}
	if !related {
		return paths
	}
	return append(paths,
		[]string{"object"},
		[]string{"context", "instructor"},
		[]string{"context", "team"},
		[]string{"object", "actor"},
		[]string{"object", "object"},
		[]string{"object", "context", "instructor"},
		[]string{"object", "context", "team"},
	)
}

// contextActivityLists are the four context activity groupings xAPI defines
var contextActivityLists = []string{"parent", "grouping", "category", "other"}

// ActivityPaths returns the object paths an activity filter inspects.
// The primary match is the statement object (typed Activity); related adds
// the four contextActivities lists and the sub-statement's own object and
// context activities
func ActivityPaths(related bool) [][]string {
	paths := [][]string{{"object"}}
	if !related {
		return paths
	}
	for _, l := range contextActivityLists {
		paths = append(paths, []string{"context", "contextActivities", l})
	}
	paths = append(paths, []string{"object", "object"})
	for _, l := range contextActivityLists {
		paths = append(paths, []string{"object", "context", "contextActivities", l})
	}
	return paths
}

// ActivityAt reports whether the node at path in s references activityID.
// Handles the three shapes the paths produce: a single activity object, a
// list of activity objects (contextActivities), or a bare id string
func ActivityAt(s Statement, path []string, activityID string) bool {
	node := lookup(map[string]any(s), path)
	switch v := node.(type) {
	case map[string]any:
		return activityObjMatches(v, path, activityID)
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok && activityObjMatches(obj, path, activityID) {
				return true
			}
		}
	case string:
		return v == activityID
	}
	return false
}

// AgentAt reports whether the node at path in s is an agent carrying ifi
func AgentAt(s Statement, path []string, ifi IFI) bool {
	obj, _ := lookup(map[string]any(s), path).(map[string]any)
	return AgentHasIFI(obj, ifi)
}

func activityObjMatches(obj map[string]any, path []string, activityID string) bool {
	id, _ := obj["id"].(string)
	if id != activityID {
		return false
	}
	// statement/sub-statement objects must be typed Activity (or untyped,
	// which defaults to Activity); contextActivities entries always are
	if last(path) == "object" {
		if ot, ok := obj["objectType"].(string); ok && ot != ObjectTypeActivity {
			return false
		}
	}
	return true
}

func lookup(m map[string]any, path []string) any {
	var cur any = m
	for _, p := range path {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = node[p]
	}
	return cur
}

func last(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}
