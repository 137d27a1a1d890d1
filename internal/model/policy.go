package model

import "strings"

// Built-in policy keywords shared by both dialects.
const (
	PolicyDirect = "DIRECT"
	PolicyReject = "REJECT"
	PolicyFinal  = "FINAL"
)

// Policy identifies a routing decision target. It is an immutable value
// type: equality and map-key behavior cover all three fields.
type Policy struct {
	Name           string
	Option         string
	IsSubscription bool
}

// optionRank fixes the sort order among options of the same policy name.
// Unknown options sort last.
var optionRank = map[string]int{
	"":                 0,
	"no-resolve":       1,
	"force-remote-dns": 2,
}

// SubscriptionPolicy is the synthetic policy for traffic addressed at the
// subscription host itself.
func SubscriptionPolicy() Policy {
	return Policy{Name: PolicyDirect, IsSubscription: true}
}

// DirectPolicy builds a DIRECT policy carrying an option modifier.
func DirectPolicy(option string) Policy {
	return Policy{Name: PolicyDirect, Option: option}
}

// ParsePolicy parses "name[,option]" as it appears at the tail of a rule
// line.
func ParsePolicy(s string) Policy {
	name, option, _ := strings.Cut(s, ",")
	return Policy{Name: strings.TrimSpace(name), Option: strings.TrimSpace(option)}
}

// IsBuiltIn reports whether the policy is a client keyword rather than a
// user-defined group. The subscription policy is never built-in.
func (p Policy) IsBuiltIn() bool {
	if p.IsSubscription {
		return false
	}
	switch p.Name {
	case PolicyDirect, PolicyReject, PolicyFinal:
		return true
	}
	return false
}

func (p Policy) rank() int {
	if r, ok := optionRank[p.Option]; ok {
		return r
	}
	return len(optionRank)
}

// Compare defines the total order used everywhere policies are listed:
// subscription policies first, then lexical by name, then by option rank.
func (p Policy) Compare(other Policy) int {
	if p.IsSubscription != other.IsSubscription {
		if p.IsSubscription {
			return -1
		}
		return 1
	}
	if c := strings.Compare(p.Name, other.Name); c != 0 {
		return c
	}
	switch a, b := p.rank(), other.rank(); {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// String renders the rule-line tail form "name[,option]".
func (p Policy) String() string {
	if p.Option == "" {
		return p.Name
	}
	return p.Name + "," + p.Option
}
