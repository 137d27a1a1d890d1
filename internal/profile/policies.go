package profile

import (
	"sort"
	"strings"

	"github.com/convkit/convertor/internal/model"
)

// ExtractPolicies returns every distinct non-built-in policy name referenced
// by the rule list, collapsed to its canonical form (no option, not a
// subscription policy), in the canonical order.
func ExtractPolicies(rules []model.Rule) []model.Policy {
	seen := make(map[model.Policy]struct{}, len(rules))
	var out []model.Policy
	for _, r := range rules {
		if r.Policy.IsBuiltIn() {
			continue
		}
		p := model.Policy{Name: r.Policy.Name}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sortPolicies(out)
	return out
}

// ExtractPoliciesForRuleProvider attributes each rule to the policy whose
// provider document it belongs in: rules whose value matches the
// subscription host map to the synthetic subscription policy, built-in
// policies stay inline and are skipped, everything else keeps its own policy
// option included.
func ExtractPoliciesForRuleProvider(rules []model.Rule, subHost string) []model.Policy {
	seen := make(map[model.Policy]struct{}, len(rules))
	var out []model.Policy
	for _, r := range rules {
		p, ok := ProviderPolicyFor(r, subHost)
		if !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sortPolicies(out)
	return out
}

// ProviderPolicyFor reports which provider document a rule belongs to, and
// false for rules that must stay inline.
func ProviderPolicyFor(r model.Rule, subHost string) (model.Policy, bool) {
	if r.IsBuiltIn() || r.Value == "" {
		return model.Policy{}, false
	}
	if subHost != "" && strings.Contains(r.Value, subHost) {
		return model.SubscriptionPolicy(), true
	}
	if r.Policy.IsBuiltIn() {
		return model.Policy{}, false
	}
	return r.Policy, true
}

// GroupRulesByPolicy builds the provider payloads for a rule list: ordered
// policies plus the per-policy rule lines, leaving built-in rules untouched.
func GroupRulesByPolicy(rules []model.Rule, subHost string) ([]model.Policy, map[model.Policy][]model.ProviderRule, error) {
	index := make(map[model.Policy][]model.ProviderRule)
	var order []model.Policy
	for _, r := range rules {
		p, ok := ProviderPolicyFor(r, subHost)
		if !ok {
			continue
		}
		pr, err := r.AsProviderRule()
		if err != nil {
			return nil, nil, err
		}
		if _, seen := index[p]; !seen {
			order = append(order, p)
		}
		index[p] = append(index[p], pr)
	}
	sortPolicies(order)
	return order, index, nil
}

func sortPolicies(ps []model.Policy) {
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].Compare(ps[j]) < 0
	})
}
