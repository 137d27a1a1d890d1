package profile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/convkit/convertor/internal/model"
)

// Surge 配置的固定分节名。分节顺序在渲染时保持解析顺序。
const (
	headerSection     = "MANAGED-CONFIG"
	generalSection    = "[General]"
	proxySection      = "[Proxy]"
	proxyGroupSection = "[Proxy Group]"
	ruleSection       = "[Rule]"
	urlRewriteSection = "[URL Rewrite]"
)

// Section is a verbatim block of a Surge document that the converter does not
// interpret. Order and content survive a parse/render round trip.
type Section struct {
	Name  string
	Lines []string
}

// SurgeProfile is the in-memory form of a Surge configuration.
type SurgeProfile struct {
	Header      string
	General     []string
	Proxies     []model.Proxy
	ProxyGroups []model.ProxyGroup
	Rules       []model.Rule
	URLRewrite  []string
	Misc        []Section

	// PolicyRules carries the per-policy provider payloads produced during
	// conversion. Empty until the converter runs.
	PolicyRules map[model.Policy][]model.ProviderRule
	PolicyOrder []model.Policy
}

// Client reports the dialect this profile serializes to.
func (p *SurgeProfile) Client() model.Client { return model.ClientSurge }

type rawSection struct {
	name  string
	start int // line number of the section header, 1-based
	lines []string
}

// ParseSurge parses a full Surge document. The block before the first
// [Section] line is kept verbatim as the header; [General], [Proxy],
// [Proxy Group] and [Rule] are required, [URL Rewrite] is optional, and any
// other section passes through untouched.
func ParseSurge(content string) (*SurgeProfile, error) {
	sections := splitSections(content)

	p := &SurgeProfile{}
	seen := make(map[string]bool, len(sections))
	for _, s := range sections {
		if seen[s.name] {
			return nil, &model.ParseError{
				Kind:   model.KindDocument,
				Line:   s.start,
				Reason: fmt.Sprintf("重复的分节: %s", s.name),
			}
		}
		seen[s.name] = true

		var err error
		switch s.name {
		case headerSection:
			p.Header = strings.TrimSpace(strings.Join(s.lines, "\n"))
		case generalSection:
			p.General = append([]string(nil), s.lines...)
		case proxySection:
			p.Proxies, err = parseSurgeItems(s, ParseSurgeProxy, func(x *model.Proxy, c string) { x.Comment = c })
		case proxyGroupSection:
			p.ProxyGroups, err = parseSurgeItems(s, ParseSurgeProxyGroup, func(x *model.ProxyGroup, c string) { x.Comment = c })
		case ruleSection:
			p.Rules, err = parseSurgeItems(s, parseSurgeRule, func(x *model.Rule, c string) { x.Comment = c })
		case urlRewriteSection:
			p.URLRewrite = append([]string(nil), s.lines...)
		default:
			p.Misc = append(p.Misc, Section{Name: s.name, Lines: append([]string(nil), s.lines...)})
		}
		if err != nil {
			return nil, err
		}
	}

	for _, required := range []string{generalSection, proxySection, proxyGroupSection, ruleSection} {
		if !seen[required] {
			return nil, &model.ParseError{
				Kind:   model.KindSectionMissing,
				Reason: fmt.Sprintf("没有找到 %s", required),
			}
		}
	}
	return p, nil
}

// splitSections cuts the document at every `[...]` line. Everything before
// the first section belongs to the pseudo-section MANAGED-CONFIG.
func splitSections(content string) []rawSection {
	var sections []rawSection
	current := rawSection{name: headerSection, start: 1}

	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			sections = append(sections, current)
			current = rawSection{name: trimmed, start: i + 1}
			continue
		}
		current.lines = append(current.lines, line)
	}
	return append(sections, current)
}

// parseSurgeItems walks one section attaching accumulated comment and blank
// lines to the next parsed item, so they re-appear in place on render.
func parseSurgeItems[T any](s rawSection, parse func(string) (T, error), setComment func(*T, string)) ([]T, error) {
	var items []T
	var comment []string
	for i, line := range s.lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isCommentLine(trimmed) {
			comment = append(comment, trimmed)
			continue
		}
		item, err := parse(trimmed)
		if err != nil {
			var pe *model.ParseError
			if e, ok := err.(*model.ParseError); ok {
				pe = e
			} else {
				pe = &model.ParseError{Kind: model.KindDocument, Reason: err.Error(), Cause: err}
			}
			pe.Line = s.start + i + 1
			return nil, pe
		}
		if len(comment) > 0 {
			setComment(&item, strings.Join(comment, "\n"))
			comment = comment[:0]
		}
		items = append(items, item)
	}
	return items, nil
}

func isCommentLine(line string) bool {
	return strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "//")
}

// trimLineComment drops a trailing line comment introduced by `//`, `;` or
// `#`. Values never contain these characters in the Surge dialect.
func trimLineComment(line string) string {
	cut := len(line)
	for _, marker := range []string{"//", ";", "#"} {
		if i := strings.Index(line, marker); i >= 0 && i < cut {
			cut = i
		}
	}
	return strings.TrimSpace(line[:cut])
}

// ParseSurgeProxy parses one [Proxy] line of the form
// `name = type, server, port, key=value, ...`.
func ParseSurgeProxy(line string) (model.Proxy, error) {
	line = trimLineComment(line)
	name, value, ok := strings.Cut(line, "=")
	if !ok {
		return model.Proxy{}, &model.ParseError{Kind: model.KindProxy, Reason: fmt.Sprintf("Proxy 格式错误: %s", line)}
	}

	fields := strings.Split(value, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) < 3 {
		return model.Proxy{}, &model.ParseError{Kind: model.KindProxy, Reason: fmt.Sprintf("Proxy type/server/port 缺失: %s", line)}
	}
	port, err := strconv.Atoi(fields[2])
	if err != nil || port <= 0 || port > 65535 {
		return model.Proxy{}, &model.ParseError{Kind: model.KindProxy, Reason: fmt.Sprintf("Proxy port 非法: %s", line)}
	}

	p := model.Proxy{
		Name:   strings.TrimSpace(name),
		Type:   fields[0],
		Server: fields[1],
		Port:   port,
	}
	for _, kv := range fields[3:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		switch k {
		case "password":
			p.Password = v
		case "encrypt-method":
			p.Cipher = v
		case "sni":
			p.SNI = v
		case "udp-relay":
			if b, err := strconv.ParseBool(v); err == nil {
				p.UDP = model.SomeBool(b)
			}
		case "tfo":
			if b, err := strconv.ParseBool(v); err == nil {
				p.TFO = model.SomeBool(b)
			}
		case "skip-cert-verify":
			if b, err := strconv.ParseBool(v); err == nil {
				p.SkipCertVerify = model.SomeBool(b)
			}
		}
		// 未知字段忽略
	}
	if p.Password == "" {
		return model.Proxy{}, &model.ParseError{Kind: model.KindProxy, Reason: fmt.Sprintf("Proxy password 缺失: %s", line)}
	}
	return p, nil
}

// ParseSurgeProxyGroup parses one [Proxy Group] line of the form
// `name = type, member, member, ...`.
func ParseSurgeProxyGroup(line string) (model.ProxyGroup, error) {
	line = trimLineComment(line)
	name, value, ok := strings.Cut(line, "=")
	if !ok {
		return model.ProxyGroup{}, &model.ParseError{Kind: model.KindProxyGroup, Reason: fmt.Sprintf("Proxy Group 格式错误: %s", line)}
	}
	fields := strings.Split(value, ",")
	gt, err := model.ParseGroupType(strings.TrimSpace(fields[0]))
	if err != nil {
		return model.ProxyGroup{}, &model.ParseError{Kind: model.KindProxyGroup, Reason: fmt.Sprintf("Proxy Group type 非法: %s", line), Cause: err}
	}
	g := model.ProxyGroup{
		Name: strings.TrimSpace(name),
		Type: gt,
	}
	for _, m := range fields[1:] {
		if m = strings.TrimSpace(m); m != "" {
			g.Proxies = append(g.Proxies, m)
		}
	}
	return g, nil
}

func parseSurgeRule(line string) (model.Rule, error) {
	return model.ParseRuleLine(trimLineComment(line))
}

// ParseSurgeProviderRules parses the body of a rule-set file: one
// `TYPE,value` entry per line, comments attached like in the main document.
func ParseSurgeProviderRules(content string) ([]model.ProviderRule, error) {
	s := rawSection{name: ruleSection, start: 0, lines: strings.Split(content, "\n")}
	return parseSurgeItems(s, parseProviderRule, func(x *model.ProviderRule, c string) { x.Comment = c })
}

func parseProviderRule(line string) (model.ProviderRule, error) {
	line = trimLineComment(line)
	t, v, ok := strings.Cut(line, ",")
	if !ok {
		return model.ProviderRule{}, &model.ParseError{Kind: model.KindRule, Reason: fmt.Sprintf("规则缺少取值: %s", line)}
	}
	rt, err := model.ParseRuleType(strings.TrimSpace(t))
	if err != nil {
		return model.ProviderRule{}, &model.ParseError{Kind: model.KindRuleType, Reason: err.Error(), Cause: err}
	}
	return model.ProviderRule{Type: rt, Value: strings.TrimSpace(v)}, nil
}
