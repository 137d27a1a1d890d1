// Package render serializes profiles back into their client dialects. Both
// renderers emit deterministic, line-oriented output so converted documents
// diff cleanly against their inputs.
package render

import (
	"strings"

	"github.com/convkit/convertor/internal/model"
)

const indent = "    "

// ProviderNameForPolicy derives the canonical rule-provider name for a
// policy. Both dialects share this scheme so the URL path and the document
// reference never disagree:
//
//	{DIRECT "" false}            -> DIRECT_policy
//	{DIRECT no-resolve false}    -> DIRECT_no_resolve
//	{DIRECT "" true}             -> Subscription_policy
func ProviderNameForPolicy(policy model.Policy) string {
	var b strings.Builder
	if policy.IsSubscription {
		b.WriteString("Subscription")
	} else {
		b.WriteString(policy.Name)
	}
	if policy.Option == "" {
		b.WriteString("_policy")
	} else {
		b.WriteByte('_')
		b.WriteString(strings.ReplaceAll(policy.Option, "-", "_"))
	}
	return b.String()
}

// renderPolicy is the rule-line tail shared by both dialects.
func renderPolicy(policy model.Policy) string {
	if policy.Option == "" {
		return policy.Name
	}
	return policy.Name + "," + policy.Option
}
