package render

import (
	"strconv"
	"strings"

	"github.com/convkit/convertor/internal/model"
	"github.com/convkit/convertor/internal/profile"
)

// ClashProfile renders a full Clash document. General keys come first, then
// the proxies, proxy-groups, rule-providers and rules sequences.
func ClashProfile(p *profile.ClashProfile) (string, error) {
	var b strings.Builder
	writeClashGeneral(&b, p)

	b.WriteString("proxies:\n")
	for _, proxy := range p.Proxies {
		writeClashItem(&b, ClashProxy(proxy))
	}
	b.WriteString("proxy-groups:\n")
	for _, g := range p.ProxyGroups {
		writeClashItem(&b, ClashProxyGroup(g))
	}
	if len(p.RuleProviders) > 0 {
		b.WriteString("rule-providers:\n")
		for _, rp := range p.RuleProviders {
			b.WriteString(indent)
			b.WriteString(ClashRuleProvider(rp))
			b.WriteByte('\n')
		}
	}
	b.WriteString("rules:\n")
	for _, r := range p.Rules {
		writeClashItem(&b, ClashRule(r))
	}
	return b.String(), nil
}

func writeClashGeneral(b *strings.Builder, p *profile.ClashProfile) {
	b.WriteString("port: " + strconv.Itoa(p.Port) + "\n")
	b.WriteString("socks-port: " + strconv.Itoa(p.SocksPort) + "\n")
	b.WriteString("redir-port: " + strconv.Itoa(p.RedirPort) + "\n")
	b.WriteString("allow-lan: " + strconv.FormatBool(p.AllowLAN) + "\n")
	b.WriteString("mode: " + p.Mode + "\n")
	b.WriteString("log-level: " + p.LogLevel + "\n")
	b.WriteString("external-controller: " + p.ExternalController + "\n")
	b.WriteString("external-ui: " + p.ExternalUI + "\n")
	if p.Secret != "" {
		b.WriteString("secret: " + yamlDQ(p.Secret) + "\n")
	}
}

func writeClashItem(b *strings.Builder, line string) {
	b.WriteString(indent)
	b.WriteString("- ")
	b.WriteString(line)
	b.WriteByte('\n')
}

// ClashProxy renders one proxies entry as a flow mapping.
func ClashProxy(p model.Proxy) string {
	var b strings.Builder
	b.WriteString("{ name: ")
	b.WriteString(yamlDQ(p.Name))
	b.WriteString(", type: ")
	b.WriteString(yamlDQ(p.Type))
	b.WriteString(", server: ")
	b.WriteString(yamlDQ(p.Server))
	b.WriteString(", port: ")
	b.WriteString(strconv.Itoa(p.Port))
	b.WriteString(", password: ")
	b.WriteString(yamlDQ(p.Password))
	if p.UDP.Set {
		b.WriteString(", udp: ")
		b.WriteString(strconv.FormatBool(p.UDP.Value))
	}
	if p.TFO.Set {
		b.WriteString(", tfo: ")
		b.WriteString(strconv.FormatBool(p.TFO.Value))
	}
	if p.Cipher != "" {
		b.WriteString(", cipher: ")
		b.WriteString(yamlDQ(p.Cipher))
	}
	if p.SNI != "" {
		b.WriteString(", sni: ")
		b.WriteString(yamlDQ(p.SNI))
	}
	if p.SkipCertVerify.Set {
		b.WriteString(", skip-cert-verify: ")
		b.WriteString(strconv.FormatBool(p.SkipCertVerify.Value))
	}
	b.WriteString(" }")
	return b.String()
}

// ClashProxyGroup renders one proxy-groups entry as a flow mapping.
func ClashProxyGroup(g model.ProxyGroup) string {
	var b strings.Builder
	b.WriteString("{ name: ")
	b.WriteString(yamlDQ(g.Name))
	b.WriteString(", type: ")
	b.WriteString(yamlDQ(string(g.Type)))
	b.WriteString(", proxies: [ ")
	for i, m := range g.Proxies {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(yamlDQ(m))
	}
	b.WriteString(" ] }")
	return b.String()
}

// ClashRule renders one rules entry in the scalar form TYPE,value,policy.
func ClashRule(r model.Rule) string {
	var b strings.Builder
	b.WriteString(string(r.Type))
	if r.Value != "" {
		b.WriteByte(',')
		b.WriteString(r.Value)
	}
	b.WriteByte(',')
	b.WriteString(renderPolicy(r.Policy))
	return b.String()
}

// ClashRuleProvider renders one rule-providers mapping entry.
func ClashRuleProvider(rp profile.NamedRuleProvider) string {
	p := rp.Provider
	var b strings.Builder
	b.WriteString(rp.Name)
	b.WriteString(": { type: ")
	b.WriteString(yamlDQ(p.Type))
	b.WriteString(", url: ")
	b.WriteString(yamlDQ(p.URL))
	b.WriteString(", path: ")
	b.WriteString(yamlDQ(p.Path))
	b.WriteString(", interval: ")
	b.WriteString(strconv.Itoa(p.Interval))
	b.WriteString(", size-limit: ")
	b.WriteString(strconv.Itoa(p.SizeLimit))
	b.WriteString(", format: ")
	b.WriteString(yamlDQ(p.Format))
	b.WriteString(", behavior: ")
	b.WriteString(yamlDQ(p.Behavior))
	b.WriteString(" }")
	return b.String()
}

// ClashProviderRules renders a provider payload document.
func ClashProviderRules(rules []model.ProviderRule) string {
	var b strings.Builder
	b.WriteString("payload:\n")
	for _, r := range rules {
		writeClashItem(&b, string(r.Type)+","+r.Value)
	}
	return b.String()
}

// yamlDQ double-quotes a YAML scalar. Escaping covers the characters that
// actually occur in proxy names and URLs.
func yamlDQ(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
