package profile

import (
	"errors"
	"testing"

	"github.com/convkit/convertor/internal/model"
)

const clashDocYAML = `port: 7890
socks-port: 7891
redir-port: 7892
allow-lan: false
mode: rule
log-level: info
external-controller: 127.0.0.1:9090
external-ui: dashboard
secret: "s3cret"
proxies:
  - { name: "HK 01", type: "ss", server: "hk1.example.com", port: 443, password: "p1", udp: true, cipher: aes-128-gcm }
  - { name: "US 02", type: "ss", server: "us2.example.com", port: 443, password: "p2", skip-cert-verify: false }
proxy-groups:
  - { name: "BosLife", type: "select", proxies: [ "HK 01", "US 02" ] }
rule-providers:
  Old_policy: { type: "http", url: "https://old.example.com/p", path: "./rule_providers/Old_policy.yaml", interval: 3600, size-limit: 0, format: "yaml", behavior: "classical" }
rules:
  - DOMAIN,example.com,BosLife
  - IP-CIDR,192.168.0.0/16,DIRECT,no-resolve
  - GEOIP,CN,DIRECT
  - MATCH,DIRECT
`

func TestParseClash(t *testing.T) {
	p, err := ParseClash(clashDocYAML)
	if err != nil {
		t.Fatal(err)
	}

	if p.Port != 7890 || p.SocksPort != 7891 || p.Mode != "rule" {
		t.Fatalf("通用字段解析错误: %+v", p)
	}
	if p.Secret != "s3cret" || p.ExternalUI != "dashboard" {
		t.Fatalf("可选字段解析错误: %+v", p)
	}

	if len(p.Proxies) != 2 {
		t.Fatalf("期望 2 个代理, got %d", len(p.Proxies))
	}
	hk := p.Proxies[0]
	if hk.Name != "HK 01" || hk.Cipher != "aes-128-gcm" || !hk.UDP.Set || !hk.UDP.Value {
		t.Fatalf("got %+v", hk)
	}
	if p.Proxies[1].UDP.Set {
		t.Fatal("未出现的字段不应置位")
	}
	if !p.Proxies[1].SkipCertVerify.Set || p.Proxies[1].SkipCertVerify.Value {
		t.Fatalf("skip-cert-verify 应为显式 false: %+v", p.Proxies[1])
	}

	if len(p.ProxyGroups) != 1 || p.ProxyGroups[0].Type != model.GroupSelect {
		t.Fatalf("got %+v", p.ProxyGroups)
	}

	if len(p.RuleProviders) != 1 || p.RuleProviders[0].Name != "Old_policy" {
		t.Fatalf("rule-providers 顺序/内容错误: %+v", p.RuleProviders)
	}
	if p.RuleProviders[0].Provider.Interval != 3600 {
		t.Fatalf("got %+v", p.RuleProviders[0].Provider)
	}

	if len(p.Rules) != 4 {
		t.Fatalf("期望 4 条规则, got %d", len(p.Rules))
	}
	if p.Rules[1].Policy.Option != "no-resolve" {
		t.Fatalf("option 丢失: %+v", p.Rules[1])
	}
	if p.Rules[3].Type != model.RuleMatch || p.Rules[3].Value != "" {
		t.Fatalf("MATCH 解析错误: %+v", p.Rules[3])
	}
}

func TestParseClashRulesForms(t *testing.T) {
	bare := "- DOMAIN,example.com,BosLife\n- FINAL,DIRECT\n"
	keyed := "rules:\n  - DOMAIN,example.com,BosLife\n  - FINAL,DIRECT\n"
	payload := "payload:\n  - DOMAIN,example.com,BosLife\n  - FINAL,DIRECT\n"

	for _, doc := range []string{bare, keyed, payload} {
		rules, err := ParseClashRules(doc)
		if err != nil {
			t.Fatalf("%q: %v", doc[:7], err)
		}
		if len(rules) != 2 || rules[0].Type != model.RuleDomain {
			t.Fatalf("%q: got %+v", doc[:7], rules)
		}
	}
}

func TestParseClashRulesErrors(t *testing.T) {
	_, err := ParseClashRules("other:\n  - DOMAIN,example.com,DIRECT\n")
	var pe *model.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("期望 ParseError, got %v", err)
	}

	_, err = ParseClashRules("just a scalar")
	if !errors.As(err, &pe) {
		t.Fatalf("期望 ParseError, got %v", err)
	}

	_, err = ParseClashRules("- DOMAINX,example.com,DIRECT\n")
	if !errors.As(err, &pe) {
		t.Fatalf("未知规则类型应当报错, got %v", err)
	}
}
