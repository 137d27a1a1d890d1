package render

import (
	"strconv"
	"strings"

	"github.com/convkit/convertor/internal/model"
	"github.com/convkit/convertor/internal/profile"
)

// SurgeProfile renders a full Surge document. Section order is fixed for the
// known sections; misc sections follow in their parse order.
func SurgeProfile(p *profile.SurgeProfile) (string, error) {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Header))
	b.WriteString("\n\n")

	writeSurgeSection(&b, "[General]", p.General)
	writeSurgeSection(&b, "[Proxy]", renderLines(p.Proxies, SurgeProxy))
	writeSurgeSection(&b, "[Proxy Group]", renderLines(p.ProxyGroups, SurgeProxyGroup))
	writeSurgeSection(&b, "[Rule]", renderLines(p.Rules, SurgeRule))
	if len(p.URLRewrite) > 0 {
		writeSurgeSection(&b, "[URL Rewrite]", p.URLRewrite)
	}
	for _, s := range p.Misc {
		writeSurgeSection(&b, s.Name, s.Lines)
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

func writeSurgeSection(b *strings.Builder, name string, lines []string) {
	b.WriteString(name)
	b.WriteByte('\n')
	body := strings.TrimSpace(strings.Join(lines, "\n"))
	if body != "" {
		b.WriteString(body)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
}

func renderLines[T any](items []T, render func(T) string) []string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, render(item))
	}
	return lines
}

// SurgeProxy renders one [Proxy] line, comment block first if the proxy
// carries one. Optional fields appear only when the source document set them.
func SurgeProxy(p model.Proxy) string {
	var b strings.Builder
	if p.Comment != "" {
		b.WriteString(p.Comment)
		b.WriteByte('\n')
	}
	b.WriteString(p.Name)
	b.WriteString(" = ")
	b.WriteString(p.Type)
	b.WriteString(", ")
	b.WriteString(p.Server)
	b.WriteString(", ")
	b.WriteString(strconv.Itoa(p.Port))
	b.WriteString(", password=")
	b.WriteString(p.Password)
	if p.Cipher != "" {
		b.WriteString(", encrypt-method=")
		b.WriteString(p.Cipher)
	}
	if p.UDP.Set {
		b.WriteString(", udp-relay=")
		b.WriteString(strconv.FormatBool(p.UDP.Value))
	}
	if p.TFO.Set {
		b.WriteString(", tfo=")
		b.WriteString(strconv.FormatBool(p.TFO.Value))
	}
	if p.SNI != "" {
		b.WriteString(", sni=")
		b.WriteString(p.SNI)
	}
	if p.SkipCertVerify.Set {
		b.WriteString(", skip-cert-verify=")
		b.WriteString(strconv.FormatBool(p.SkipCertVerify.Value))
	}
	return b.String()
}

// SurgeProxyGroup renders one [Proxy Group] line.
func SurgeProxyGroup(g model.ProxyGroup) string {
	var b strings.Builder
	if g.Comment != "" {
		b.WriteString(g.Comment)
		b.WriteByte('\n')
	}
	b.WriteString(g.Name)
	b.WriteString(" = ")
	b.WriteString(string(g.Type))
	for _, m := range g.Proxies {
		b.WriteString(", ")
		b.WriteString(m)
	}
	return b.String()
}

// SurgeRule renders one [Rule] line.
func SurgeRule(r model.Rule) string {
	var b strings.Builder
	if r.Comment != "" {
		b.WriteString(r.Comment)
		b.WriteByte('\n')
	}
	b.WriteString(string(r.Type))
	if r.Value != "" {
		b.WriteByte(',')
		b.WriteString(r.Value)
	}
	b.WriteByte(',')
	b.WriteString(renderPolicy(r.Policy))
	return b.String()
}

// SurgeProviderRules renders a rule-set payload: one TYPE,value entry per
// line with comments in place.
func SurgeProviderRules(rules []model.ProviderRule) string {
	var b strings.Builder
	for _, r := range rules {
		if r.Comment != "" {
			b.WriteString(r.Comment)
			b.WriteByte('\n')
		}
		b.WriteString(string(r.Type))
		b.WriteByte(',')
		b.WriteString(r.Value)
		b.WriteByte('\n')
	}
	return b.String()
}
