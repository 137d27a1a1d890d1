// Package urlbuilder constructs every outward-facing URL a converted profile
// embeds: the raw passthrough link, the conversion endpoints, per-policy
// rule-provider links and the subscription-log link. The upstream
// subscription URL and the shared secret never travel in cleartext; both are
// carried as tokens produced by the encrypt codec.
package urlbuilder

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/convkit/convertor/internal/encrypt"
	"github.com/convkit/convertor/internal/model"
)

// DefaultInterval is the refresh interval applied when a request does not
// carry one, in seconds.
const DefaultInterval = 86400

// Error reports a URL or query construction failure.
type Error struct {
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("URL 构造失败: %s", e.Reason)
	}
	return fmt.Sprintf("URL 构造失败: %s: %v", e.Reason, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Builder carries everything needed to derive the full URL family for one
// (client, provider, subscription) triple.
type Builder struct {
	Secret    string
	EncSecret string
	Client    model.Client
	Provider  string
	Server    *url.URL
	SubURL    *url.URL
	EncSubURL string
	Interval  int
	Strict    bool

	codec *encrypt.Codec
}

// New builds a Builder, encrypting the secret and subscription URL with the
// secret itself. Opts are forwarded to the codec (tests inject a fixed nonce
// source).
func New(secret string, client model.Client, provider string, server, subURL *url.URL, interval int, strict bool, opts ...encrypt.Option) (*Builder, error) {
	if server == nil || server.Host == "" {
		return nil, &Error{Reason: "server 缺少主机名"}
	}
	if subURL == nil || subURL.Host == "" {
		return nil, &Error{Reason: "订阅链接缺少主机名"}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	codec := encrypt.New([]byte(secret), opts...)
	encSecret, err := codec.Encrypt(secret)
	if err != nil {
		return nil, &Error{Reason: "无法加密 secret", Cause: err}
	}
	encSubURL, err := codec.Encrypt(subURL.String())
	if err != nil {
		return nil, &Error{Reason: "无法加密订阅链接", Cause: err}
	}
	return &Builder{
		Secret:    secret,
		EncSecret: encSecret,
		Client:    client,
		Provider:  provider,
		Server:    server,
		SubURL:    subURL,
		EncSubURL: encSubURL,
		Interval:  interval,
		Strict:    strict,
		codec:     codec,
	}, nil
}

// SubHost returns the subscription host, port included when present. It is
// the needle used to spot subscription-host rules during conversion.
func (b *Builder) SubHost() (string, error) {
	if b.SubURL == nil || b.SubURL.Host == "" {
		return "", &Error{Reason: "订阅链接缺少主机名"}
	}
	return b.SubURL.Host, nil
}

// RawURL is the provider's own subscription link with the client flag
// appended, untouched otherwise.
func (b *Builder) RawURL() *url.URL {
	u := *b.SubURL
	q := u.Query()
	q.Set("flag", string(b.Client))
	u.RawQuery = q.Encode()
	return &u
}

// RawProfileURL points at the conversion server's passthrough endpoint.
func (b *Builder) RawProfileURL() (*url.URL, error) {
	return b.serverURL("/raw-profile/"+string(b.Client)+"/"+b.Provider, b.profileQuery()), nil
}

// ProfileURL points at the conversion endpoint.
func (b *Builder) ProfileURL() (*url.URL, error) {
	return b.serverURL("/profile/"+string(b.Client)+"/"+b.Provider, b.profileQuery()), nil
}

// RuleProviderURL points at the rule-set endpoint for one policy.
func (b *Builder) RuleProviderURL(policy model.Policy) (*url.URL, error) {
	q := b.profileQuery()
	encodePolicy(q, policy)
	return b.serverURL("/rule-provider/"+string(b.Client)+"/"+b.Provider, q), nil
}

// SubLogsURL points at the log-retrieval endpoint. Only the encrypted secret
// travels.
func (b *Builder) SubLogsURL() (*url.URL, error) {
	q := url.Values{}
	q.Set("secret", b.EncSecret)
	return b.serverURL("/sub-logs", q), nil
}

func (b *Builder) serverURL(path string, q url.Values) *url.URL {
	u := *b.Server
	u.Path = path
	u.RawQuery = q.Encode()
	return &u
}

func (b *Builder) profileQuery() url.Values {
	q := url.Values{}
	q.Set("interval", strconv.Itoa(b.Interval))
	q.Set("strict", strconv.FormatBool(b.Strict))
	q.Set("sub_url", b.EncSubURL)
	return q
}

func encodePolicy(q url.Values, policy model.Policy) {
	q.Set("policy[name]", policy.Name)
	if policy.Option != "" {
		q.Set("policy[option]", policy.Option)
	}
	q.Set("policy[is_subscription]", strconv.FormatBool(policy.IsSubscription))
}

// HeaderURLType selects which URL a Surge managed-config header embeds.
type HeaderURLType int

const (
	HeaderRaw HeaderURLType = iota
	HeaderRawProfile
	HeaderProfile
)

// SurgeHeader renders the managed-config line Surge polls for updates:
//
//	#!MANAGED-CONFIG <url> interval=<seconds> strict=<bool>
func (b *Builder) SurgeHeader(t HeaderURLType) (string, error) {
	var u *url.URL
	var err error
	switch t {
	case HeaderRaw:
		u = b.RawURL()
	case HeaderRawProfile:
		u, err = b.RawProfileURL()
	case HeaderProfile:
		u, err = b.ProfileURL()
	default:
		return "", &Error{Reason: fmt.Sprintf("不支持的订阅头类型: %d", t)}
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("#!MANAGED-CONFIG %s interval=%d strict=%t", u, b.Interval, b.Strict), nil
}
