package model

import "strings"

// RuleType is the closed set of rule tags the converter understands.
// Parsing is case-sensitive: an unrecognized tag is a ParseError, never a
// silent drop.
type RuleType string

const (
	RuleDomain        RuleType = "DOMAIN"
	RuleDomainSuffix  RuleType = "DOMAIN-SUFFIX"
	RuleDomainKeyword RuleType = "DOMAIN-KEYWORD"
	RuleProcessName   RuleType = "PROCESS-NAME"
	RuleUserAgent     RuleType = "USER-AGENT"
	RuleRuleSet       RuleType = "RULE-SET"
	RuleGeoIP         RuleType = "GEOIP"
	RuleIPCIDR        RuleType = "IP-CIDR"
	RuleIPCIDR6       RuleType = "IP-CIDR6"
	RuleFinal         RuleType = "FINAL"
	RuleMatch         RuleType = "MATCH"
)

var ruleTypes = map[string]RuleType{
	"DOMAIN":         RuleDomain,
	"DOMAIN-SUFFIX":  RuleDomainSuffix,
	"DOMAIN-KEYWORD": RuleDomainKeyword,
	"PROCESS-NAME":   RuleProcessName,
	"USER-AGENT":     RuleUserAgent,
	"RULE-SET":       RuleRuleSet,
	"GEOIP":          RuleGeoIP,
	"IP-CIDR":        RuleIPCIDR,
	"IP-CIDR6":       RuleIPCIDR6,
	"FINAL":          RuleFinal,
	"MATCH":          RuleMatch,
}

func ParseRuleType(s string) (RuleType, error) {
	if t, ok := ruleTypes[s]; ok {
		return t, nil
	}
	return "", &ParseError{Kind: KindRuleType, Reason: "未知的规则类型: " + s}
}

func (t RuleType) String() string { return string(t) }

// Rule is one line of routing logic. Value is empty for FINAL/MATCH rules.
// Comment carries the dialect-specific decoration preceding the line.
type Rule struct {
	Type    RuleType
	Value   string
	Policy  Policy
	Comment string
}

// IsBuiltIn reports whether the rule must stay inline in the main document
// (terminal and GEOIP rules are never moved into a rule provider).
func (r Rule) IsBuiltIn() bool {
	return r.Type == RuleGeoIP || r.Type == RuleFinal || r.Type == RuleMatch
}

// SurgeRuleProvider builds the RULE-SET reference line spliced into a Surge
// document, annotated with the generated document's name.
func SurgeRuleProvider(policy Policy, name, url string) Rule {
	return Rule{
		Type:    RuleRuleSet,
		Value:   url,
		Policy:  policy,
		Comment: "// " + name,
	}
}

// ClashRuleProvider builds the RULE-SET reference spliced into a Clash
// document; Clash resolves the provider by name lookup.
func ClashRuleProvider(policy Policy, name string) Rule {
	return Rule{Type: RuleRuleSet, Value: name, Policy: policy}
}

// ParseRuleLine parses "TYPE,value[,policy[,option]]"; for FINAL/MATCH the
// second field is the policy name.
func ParseRuleLine(line string) (Rule, error) {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) < 2 || fields[0] == "" {
		return Rule{}, &ParseError{
			Kind:   KindRule,
			Reason: "规则格式错误, 应该为`type,value[,policy[,option]]`: " + line,
		}
	}

	typ, err := ParseRuleType(fields[0])
	if err != nil {
		return Rule{}, err
	}

	if len(fields) == 2 {
		return Rule{Type: typ, Policy: Policy{Name: fields[1]}}, nil
	}

	option := ""
	if len(fields) > 3 {
		option = fields[3]
	}
	return Rule{
		Type:   typ,
		Value:  fields[1],
		Policy: Policy{Name: fields[2], Option: option},
	}, nil
}

// ProviderRule is the line-level form used inside a generated rule-provider
// document. The policy is implied by which document the rule lives in.
type ProviderRule struct {
	Type    RuleType
	Value   string
	Comment string
}

// AsProviderRule strips the policy from an inline rule. Rules without a
// value cannot live in a provider document.
func (r Rule) AsProviderRule() (ProviderRule, error) {
	if r.Value == "" {
		return ProviderRule{}, &ParseError{
			Kind:   KindRule,
			Reason: "无法将没有值的规则转换为 ProviderRule: " + string(r.Type),
		}
	}
	return ProviderRule{Type: r.Type, Value: r.Value, Comment: r.Comment}, nil
}
