package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/convkit/convertor/internal/cache"
	"github.com/convkit/convertor/internal/config"
	"github.com/convkit/convertor/internal/encrypt"
	"github.com/convkit/convertor/internal/model"
	"github.com/convkit/convertor/internal/urlbuilder"
)

const testSecret = "the service secret"

const surgeUpstream = `#!MANAGED-CONFIG https://example.com interval=86400 strict=true

[General]
loglevel = notify

[Proxy]
HK 1 = ss, hk.example.com, 443, password=pw

[Proxy Group]
BosLife = select, HK 1

[Rule]
DOMAIN,sub.example.com,DIRECT
DOMAIN-SUFFIX,example.org,BosLife
GEOIP,CN,DIRECT
FINAL,BosLife
`

const clashUpstream = `port: 7890
allow-lan: false
mode: rule
proxies:
    - { name: "HK 1", type: ss, server: hk.example.com, port: 443 }
proxy-groups:
    - { name: BosLife, type: select, proxies: [HK 1] }
rules:
    - DOMAIN,sub.example.com,DIRECT
    - DOMAIN-SUFFIX,example.org,BosLife
    - GEOIP,CN,DIRECT
    - MATCH,BosLife
`

// newTestServer spins up a fake upstream serving body and a handler wired to
// it, returning the mux and the upstream subscription URL.
func newTestServer(t *testing.T, body string, extra map[string]config.Provider) (*http.ServeMux, *url.URL) {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "abc" {
			http.Error(w, "bad token", http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	cfg.Secret = testSecret
	cfg.Server.ExternalURL = "https://conv.example.com"
	cfg.Provider = extra

	s, err := NewServer(cfg, cache.New(8, time.Minute, nil), Options{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	subURL, err := url.Parse(upstream.URL + "/s?token=abc")
	if err != nil {
		t.Fatalf("parse upstream url: %v", err)
	}
	return NewMux(s), subURL
}

func profileRequestURI(t *testing.T, client model.Client, subURL *url.URL) string {
	t.Helper()
	server, _ := url.Parse("https://conv.example.com")
	b, err := urlbuilder.New(testSecret, client, "boslife", server, subURL, 0, true)
	if err != nil {
		t.Fatalf("urlbuilder.New: %v", err)
	}
	u, err := b.ProfileURL()
	if err != nil {
		t.Fatalf("ProfileURL: %v", err)
	}
	return u.RequestURI()
}

func TestHandleProfile_Surge(t *testing.T) {
	mux, subURL := newTestServer(t, surgeUpstream, nil)

	req := httptest.NewRequest(http.MethodGet, profileRequestURI(t, model.ClientSurge, subURL), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "#!MANAGED-CONFIG https://conv.example.com/profile/surge/boslife?") {
		t.Fatalf("managed-config header not rewritten:\n%s", body)
	}
	if !strings.Contains(body, "RULE-SET,https://conv.example.com/rule-provider/surge/boslife?") {
		t.Fatalf("rule-provider reference missing:\n%s", body)
	}
	if !strings.Contains(body, "GEOIP,CN,DIRECT") {
		t.Fatalf("built-in rule lost:\n%s", body)
	}
}

func TestHandleProfile_Clash(t *testing.T) {
	mux, subURL := newTestServer(t, clashUpstream, nil)

	req := httptest.NewRequest(http.MethodGet, profileRequestURI(t, model.ClientClash, subURL), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "rule-providers:") {
		t.Fatalf("rule-providers section missing:\n%s", body)
	}
	if !strings.Contains(body, "https://conv.example.com/rule-provider/clash/boslife?") {
		t.Fatalf("rule-provider url missing:\n%s", body)
	}
	// Inline rules stay put for clash.
	if !strings.Contains(body, "DOMAIN-SUFFIX,example.org,BosLife") {
		t.Fatalf("inline rule dropped:\n%s", body)
	}
}

func TestHandleProfile_CachesConvertedBody(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(surgeUpstream))
	}))
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	cfg.Secret = testSecret
	cfg.Server.ExternalURL = "https://conv.example.com"
	s, err := NewServer(cfg, cache.New(8, time.Minute, nil), Options{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	mux := NewMux(s)

	subURL, err := url.Parse(upstream.URL + "/s?token=abc")
	if err != nil {
		t.Fatalf("parse upstream url: %v", err)
	}
	uri := profileRequestURI(t, model.ClientSurge, subURL)

	var first string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, uri, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status=%d, body=%s", i, rec.Code, rec.Body.String())
		}
		if i == 0 {
			first = rec.Body.String()
		} else if rec.Body.String() != first {
			t.Fatalf("cached body differs from first response")
		}
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("upstream hits=%d, want=1", n)
	}
}

func TestHandleRawProfile_Passthrough(t *testing.T) {
	mux, subURL := newTestServer(t, surgeUpstream, nil)

	server, _ := url.Parse("https://conv.example.com")
	b, err := urlbuilder.New(testSecret, model.ClientSurge, "boslife", server, subURL, 0, true)
	if err != nil {
		t.Fatalf("urlbuilder.New: %v", err)
	}
	u, err := b.RawProfileURL()
	if err != nil {
		t.Fatalf("RawProfileURL: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, u.RequestURI(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != surgeUpstream {
		t.Fatalf("raw profile modified:\n%s", rec.Body.String())
	}
}

func TestHandleRuleProvider_Surge(t *testing.T) {
	mux, subURL := newTestServer(t, surgeUpstream, nil)

	server, _ := url.Parse("https://conv.example.com")
	b, err := urlbuilder.New(testSecret, model.ClientSurge, "boslife", server, subURL, 0, true)
	if err != nil {
		t.Fatalf("urlbuilder.New: %v", err)
	}
	u, err := b.RuleProviderURL(model.Policy{Name: "BosLife"})
	if err != nil {
		t.Fatalf("RuleProviderURL: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, u.RequestURI(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "DOMAIN-SUFFIX,example.org\n" {
		t.Fatalf("rule set body=%q", got)
	}
}

func TestHandleRuleProvider_UnknownPolicy(t *testing.T) {
	mux, subURL := newTestServer(t, surgeUpstream, nil)

	server, _ := url.Parse("https://conv.example.com")
	b, err := urlbuilder.New(testSecret, model.ClientSurge, "boslife", server, subURL, 0, true)
	if err != nil {
		t.Fatalf("urlbuilder.New: %v", err)
	}
	u, err := b.RuleProviderURL(model.Policy{Name: "Nope"})
	if err != nil {
		t.Fatalf("RuleProviderURL: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, u.RequestURI(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d, body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleProfile_BadQuery(t *testing.T) {
	mux, _ := newTestServer(t, surgeUpstream, nil)

	cases := []string{
		"/profile/surge/boslife",                    // missing sub_url
		"/profile/surge/boslife?sub_url=garbage",    // undecryptable token
		"/profile/quantumult/boslife?sub_url=x",     // unknown client
		"/profile/surge/boslife?sub_url=&interval=", // empty values
	}
	for _, uri := range cases {
		req := httptest.NewRequest(http.MethodGet, uri, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status=%d, want=400", uri, rec.Code)
		}
	}
}

func TestHandleSubLogs(t *testing.T) {
	panel := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/passport/auth/login":
			_, _ = w.Write([]byte(`{"data":{"auth_data":"tok"}}`))
		case "/user/stat/getSubscribeLog":
			_, _ = w.Write([]byte(`{"data":[{"user_id":1,"ip":"1.2.3.4","location":"HK","isp":"hkt","host":"sub.example.com","ua":"surge/5","created_at":1756700000}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer panel.Close()

	mux, _ := newTestServer(t, surgeUpstream, map[string]config.Provider{
		"boslife": {APIBaseURL: panel.URL, Email: "a@b.c", Password: "p"},
	})

	tok, err := encrypt.New([]byte(testSecret)).Encrypt(testSecret)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/sub-logs?secret="+url.QueryEscape(tok), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rec.Code, rec.Body.String())
	}
	var logs []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &logs); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(logs) != 1 || logs[0]["ip"] != "1.2.3.4" {
		t.Fatalf("unexpected logs: %v", logs)
	}
}

func TestHandleSubLogs_WrongSecret(t *testing.T) {
	mux, _ := newTestServer(t, surgeUpstream, nil)

	tok, err := encrypt.New([]byte("other secret")).Encrypt("other secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/sub-logs?secret="+url.QueryEscape(tok), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d, body=%s", rec.Code, rec.Body.String())
	}
}
