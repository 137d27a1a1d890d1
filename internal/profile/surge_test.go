package profile

import (
	"errors"
	"strings"
	"testing"

	"github.com/convkit/convertor/internal/model"
)

const surgeDoc = `#!MANAGED-CONFIG https://example.com/sub?token=abc interval=86400 strict=true

[General]
loglevel = notify
dns-server = system

[Proxy]
# 香港机房
HK 01 = ss, hk1.example.com, 443, password=p1, encrypt-method=aes-128-gcm, udp-relay=true
US 02 = ss, us2.example.com, 443, password=p2, tfo=true, skip-cert-verify=false

[Proxy Group]
BosLife = select, HK 01, US 02
Auto = url-test, HK 01, US 02

[Rule]
DOMAIN,example.com,BosLife
# 内网直连
IP-CIDR,192.168.0.0/16,DIRECT,no-resolve
GEOIP,CN,DIRECT
FINAL,DIRECT

[URL Rewrite]
^http://example\.com https://example.com header

[Host]
localhost = 127.0.0.1
`

func TestParseSurge(t *testing.T) {
	p, err := ParseSurge(surgeDoc)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(p.Header, "#!MANAGED-CONFIG ") {
		t.Fatalf("header 丢失: %q", p.Header)
	}
	if len(p.General) == 0 {
		t.Fatal("[General] 为空")
	}

	if len(p.Proxies) != 2 {
		t.Fatalf("期望 2 个代理, got %d", len(p.Proxies))
	}
	hk := p.Proxies[0]
	if hk.Name != "HK 01" || hk.Type != "ss" || hk.Server != "hk1.example.com" || hk.Port != 443 {
		t.Fatalf("got %+v", hk)
	}
	if hk.Password != "p1" || hk.Cipher != "aes-128-gcm" {
		t.Fatalf("字段解析错误: %+v", hk)
	}
	if !hk.UDP.Set || !hk.UDP.Value {
		t.Fatalf("udp-relay 丢失: %+v", hk.UDP)
	}
	if hk.Comment != "# 香港机房" {
		t.Fatalf("注释未附着: %q", hk.Comment)
	}
	us := p.Proxies[1]
	if !us.SkipCertVerify.Set || us.SkipCertVerify.Value {
		t.Fatalf("skip-cert-verify 应为显式 false: %+v", us.SkipCertVerify)
	}

	if len(p.ProxyGroups) != 2 {
		t.Fatalf("期望 2 个策略组, got %d", len(p.ProxyGroups))
	}
	if p.ProxyGroups[0].Type != model.GroupSelect || len(p.ProxyGroups[0].Proxies) != 2 {
		t.Fatalf("got %+v", p.ProxyGroups[0])
	}
	if p.ProxyGroups[1].Type != model.GroupURLTest {
		t.Fatalf("got %+v", p.ProxyGroups[1])
	}

	if len(p.Rules) != 4 {
		t.Fatalf("期望 4 条规则, got %d", len(p.Rules))
	}
	if p.Rules[1].Comment != "# 内网直连" {
		t.Fatalf("规则注释未附着: %q", p.Rules[1].Comment)
	}
	if p.Rules[1].Policy.Option != "no-resolve" {
		t.Fatalf("option 丢失: %+v", p.Rules[1].Policy)
	}

	if len(p.URLRewrite) == 0 {
		t.Fatal("[URL Rewrite] 丢失")
	}
	if len(p.Misc) != 1 || p.Misc[0].Name != "[Host]" {
		t.Fatalf("未知分节应原样保留: %+v", p.Misc)
	}
}

func TestParseSurgeMissingSection(t *testing.T) {
	_, err := ParseSurge("#!MANAGED-CONFIG x\n[General]\nloglevel = notify\n")
	var pe *model.ParseError
	if !errors.As(err, &pe) || pe.Kind != model.KindSectionMissing {
		t.Fatalf("期望 SectionMissing, got %v", err)
	}
}

func TestParseSurgeBadRuleLine(t *testing.T) {
	doc := strings.Replace(surgeDoc, "DOMAIN,example.com,BosLife", "DOMAINX,example.com,BosLife", 1)
	_, err := ParseSurge(doc)
	var pe *model.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("期望 ParseError, got %v", err)
	}
	if pe.Line == 0 {
		t.Fatal("错误应携带行号")
	}
}

func TestParseSurgeBadProxy(t *testing.T) {
	doc := strings.Replace(surgeDoc, "US 02 = ss, us2.example.com, 443, password=p2, tfo=true, skip-cert-verify=false",
		"US 02 = ss, us2.example.com, 443", 1)
	_, err := ParseSurge(doc)
	var pe *model.ParseError
	if !errors.As(err, &pe) || pe.Kind != model.KindProxy {
		t.Fatalf("期望 Proxy 错误, got %v", err)
	}
}

func TestTrimLineComment(t *testing.T) {
	if got := trimLineComment("DOMAIN,example.com,DIRECT // 说明"); got != "DOMAIN,example.com,DIRECT" {
		t.Fatalf("got %q", got)
	}
	if got := trimLineComment("DOMAIN,example.com,DIRECT"); got != "DOMAIN,example.com,DIRECT" {
		t.Fatalf("got %q", got)
	}
}

func TestParseSurgeProviderRules(t *testing.T) {
	rules, err := ParseSurgeProviderRules("# 头部注释\nDOMAIN,example.com\nIP-CIDR,10.0.0.0/8\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d", len(rules))
	}
	if rules[0].Comment != "# 头部注释" {
		t.Fatalf("注释未附着: %q", rules[0].Comment)
	}
	if rules[1].Type != model.RuleIPCIDR {
		t.Fatalf("got %+v", rules[1])
	}
}
