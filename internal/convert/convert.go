// Package convert mutates a parsed profile so that every dynamic reference
// points back at the conversion server: the managed-config header, the
// per-policy rule providers and the provider-reference rules that replace or
// accompany inline rules.
package convert

import (
	"github.com/convkit/convertor/internal/model"
	"github.com/convkit/convertor/internal/profile"
	"github.com/convkit/convertor/internal/render"
	"github.com/convkit/convertor/internal/urlbuilder"
)

// Surge converts a Surge profile in place. Steps are order-sensitive:
// header replacement, proxy region annotation, then rule optimization.
func Surge(p *profile.SurgeProfile, b *urlbuilder.Builder) error {
	header, err := b.SurgeHeader(urlbuilder.HeaderProfile)
	if err != nil {
		return err
	}
	annotateRegions(p.Proxies)

	subHost, err := b.SubHost()
	if err != nil {
		return err
	}
	order, index, err := profile.GroupRulesByPolicy(p.Rules, subHost)
	if err != nil {
		return err
	}

	// Build every URL before touching the profile so a failure leaves it
	// unmodified.
	refs := make(map[model.Policy]model.Rule, len(order))
	for _, policy := range order {
		name := render.ProviderNameForPolicy(policy)
		u, err := b.RuleProviderURL(policy)
		if err != nil {
			return err
		}
		refs[policy] = model.SurgeRuleProvider(policy, name, u.String())
	}

	p.Header = header
	p.ProxyGroups = appendRegionGroups(p.ProxyGroups, p.Proxies, model.GroupSmart)
	p.Rules = spliceSurgeRules(p.Rules, subHost, refs)
	p.PolicyRules = index
	p.PolicyOrder = order
	return nil
}

// spliceSurgeRules replaces each run of provider-bound rules with one
// RULE-SET reference at the position of the first rule it subsumes. Inline
// rules that stay (built-in rules and built-in policies) keep their place.
func spliceSurgeRules(rules []model.Rule, subHost string, refs map[model.Policy]model.Rule) []model.Rule {
	out := make([]model.Rule, 0, len(rules))
	emitted := make(map[model.Policy]bool, len(refs))
	for _, r := range rules {
		policy, ok := profile.ProviderPolicyFor(r, subHost)
		if !ok {
			out = append(out, r)
			continue
		}
		if emitted[policy] {
			continue
		}
		emitted[policy] = true
		out = append(out, refs[policy])
	}
	return out
}

// Clash converts a Clash profile in place. Clash resolves rule sets by
// name lookup, so inline rules stay in the document; conversion only adds
// the rule-providers entries and their reference rules.
func Clash(p *profile.ClashProfile, b *urlbuilder.Builder) error {
	annotateRegions(p.Proxies)

	subHost, err := b.SubHost()
	if err != nil {
		return err
	}
	order, index, err := profile.GroupRulesByPolicy(p.Rules, subHost)
	if err != nil {
		return err
	}

	providers := make([]profile.NamedRuleProvider, 0, len(order))
	refs := make([]model.Rule, 0, len(order))
	for _, policy := range order {
		name := render.ProviderNameForPolicy(policy)
		u, err := b.RuleProviderURL(policy)
		if err != nil {
			return err
		}
		providers = append(providers, profile.NamedRuleProvider{
			Name:     name,
			Provider: model.NewRuleProvider(u.String(), name, b.Interval),
		})
		refs = append(refs, model.ClashRuleProvider(policy, name))
	}

	p.ProxyGroups = appendRegionGroups(p.ProxyGroups, p.Proxies, model.GroupURLTest)
	p.RuleProviders = append(p.RuleProviders, providers...)
	p.Rules = insertBeforeTrailingBuiltIns(p.Rules, refs)
	p.PolicyRules = index
	p.PolicyOrder = order
	return nil
}

// insertBeforeTrailingBuiltIns places the reference rules ahead of the
// terminal built-in block (GEOIP/FINAL/MATCH at the document tail), so the
// catch-all rules keep matching last.
func insertBeforeTrailingBuiltIns(rules, refs []model.Rule) []model.Rule {
	cut := len(rules)
	for cut > 0 && rules[cut-1].IsBuiltIn() {
		cut--
	}
	out := make([]model.Rule, 0, len(rules)+len(refs))
	out = append(out, rules[:cut]...)
	out = append(out, refs...)
	out = append(out, rules[cut:]...)
	return out
}

// appendRegionGroups adds one automatic proxy group per detected region,
// named after the region, holding its proxies. Surge gets smart groups and
// Clash gets url-test groups; groups already in the profile are kept as-is,
// and a name collision means the upstream already manages that region.
func appendRegionGroups(groups []model.ProxyGroup, proxies []model.Proxy, typ model.GroupType) []model.ProxyGroup {
	taken := make(map[string]bool, len(groups))
	for _, g := range groups {
		taken[g.Name] = true
	}
	byRegion, _ := profile.GroupByRegion(proxies)
	for _, rg := range byRegion {
		name := rg.Region.PolicyName()
		if taken[name] {
			continue
		}
		names := make([]string, 0, len(rg.Proxies))
		for _, p := range rg.Proxies {
			names = append(names, p.Name)
		}
		groups = append(groups, model.ProxyGroup{Name: name, Type: typ, Proxies: names})
	}
	return groups
}

// annotateRegions attaches the detected region to each proxy's comment. The
// proxy list itself is never reordered or shrunk here.
func annotateRegions(proxies []model.Proxy) {
	for i := range proxies {
		note := "# region: other"
		if r := profile.RegionOf(&proxies[i]); r != nil {
			note = "# region: " + r.Code + " " + r.PolicyName()
		}
		if proxies[i].Comment == "" {
			proxies[i].Comment = note
		} else {
			proxies[i].Comment += "\n" + note
		}
	}
}
