package lrs

import (
	"bytes"
	"encoding/json"
	"strings"

	perr "lrsgate/internal/platform/errors"
	"lrsgate/internal/xapi"
)

// AgentID identifies an agent by exactly one Inverse Functional Identifier.
// Account identification needs both AccountName and AccountHomePage
type AgentID struct {
	Mbox            string `json:"mbox,omitempty"`
	MboxSHA1Sum     string `json:"mbox_sha1sum,omitempty"`
	OpenID          string `json:"openid,omitempty"`
	AccountName     string `json:"-"`
	AccountHomePage string `json:"-"`
}

// agentWire is the xAPI JSON shape of an agent filter value
type agentWire struct {
	ObjectType string `json:"objectType,omitempty"`
	Name       string `json:"name,omitempty"`
	Mbox       string `json:"mbox,omitempty"`
	MboxSHA1   string `json:"mbox_sha1sum,omitempty"`
	OpenID     string `json:"openid,omitempty"`
	Account    *struct {
		Name     string `json:"name"`
		HomePage string `json:"homePage"`
	} `json:"account,omitempty"`
}

// ParseAgentJSON decodes an xAPI agent object into an AgentID
func ParseAgentJSON(raw []byte) (*AgentID, error) {
	var w agentWire
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, perr.Validationf("malformed agent object: %v", err)
	}
	a := &AgentID{
		Mbox:        w.Mbox,
		MboxSHA1Sum: w.MboxSHA1,
		OpenID:      xapi.NormalizeIRI(w.OpenID),
	}
	if w.Account != nil {
		a.AccountName = w.Account.Name
		a.AccountHomePage = xapi.NormalizeIRI(w.Account.HomePage)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate enforces the exactly-one-IFI rule
func (a *AgentID) Validate() error {
	n := 0
	if a.Mbox != "" {
		n++
	}
	if a.MboxSHA1Sum != "" {
		n++
	}
	if a.OpenID != "" {
		n++
	}
	switch {
	case a.AccountName != "" && a.AccountHomePage != "":
		n++
	case a.AccountName != "" || a.AccountHomePage != "":
		return perr.Validationf("account requires both name and homePage")
	}
	if n != 1 {
		return perr.Validationf("agent must carry exactly one identifier")
	}
	return nil
}

// IFI resolves the populated identifier. When more than one field is set
// the mbox > mbox_sha1sum > openid > account order breaks the tie
func (a *AgentID) IFI() xapi.IFI {
	switch {
	case a.Mbox != "":
		return xapi.IFI{Kind: xapi.IFIMbox, Value: a.Mbox}
	case a.MboxSHA1Sum != "":
		return xapi.IFI{Kind: xapi.IFIMboxSHA1, Value: a.MboxSHA1Sum}
	case a.OpenID != "":
		return xapi.IFI{Kind: xapi.IFIOpenID, Value: a.OpenID}
	case a.AccountName != "" && a.AccountHomePage != "":
		return xapi.IFI{Kind: xapi.IFIAccount, Value: a.AccountName, HomePage: a.AccountHomePage}
	default:
		return xapi.IFI{}
	}
}

// XAPIObject renders the identifier back into the xAPI agent JSON shape,
// for backends that speak the protocol outward (the remote forwarder)
func (a *AgentID) XAPIObject() map[string]any {
	obj := map[string]any{"objectType": xapi.ObjectTypeAgent}
	switch ifi := a.IFI(); ifi.Kind {
	case xapi.IFIAccount:
		obj["account"] = map[string]any{"name": ifi.Value, "homePage": ifi.HomePage}
	case xapi.IFINone:
	default:
		obj[ifi.Kind.Field()] = ifi.Value
	}
	return obj
}

// FieldMatch is one dotted-path equality a translator ANDs into its filter
type FieldMatch struct {
	Path  string
	Value string
}

// PairsAt expands an identifier into the equality pairs for one role path.
// Mbox, sha1 and openid each yield a single pair; account yields the
// name and homePage pair that must both hold
func PairsAt(path []string, ifi xapi.IFI) []FieldMatch {
	base := strings.Join(path, ".")
	if base != "" {
		base += "."
	}
	if ifi.Kind == xapi.IFIAccount {
		return []FieldMatch{
			{Path: base + "account.name", Value: ifi.Value},
			{Path: base + "account.homePage", Value: ifi.HomePage},
		}
	}
	return []FieldMatch{{Path: base + ifi.Kind.Field(), Value: ifi.Value}}
}

// AgentClauses expands an agent filter into per-path pair groups, one group
// per role path, ORed across paths and ANDed within a group. related widens
// the paths from the actor alone to the full related-agents list
func AgentClauses(a *AgentID, related bool) [][]FieldMatch {
	if a == nil {
		return nil
	}
	ifi := a.IFI()
	paths := xapi.AgentPaths(related)
	out := make([][]FieldMatch, 0, len(paths))
	for _, p := range paths {
		out = append(out, PairsAt(p, ifi))
	}
	return out
}

// AuthorityClauses expands an authority filter; the authority role has a
// single path and no related expansion
func AuthorityClauses(a *AgentID) [][]FieldMatch {
	if a == nil {
		return nil
	}
	return [][]FieldMatch{PairsAt(xapi.AuthorityPath, a.IFI())}
}
