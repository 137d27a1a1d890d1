package urlbuilder

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/convkit/convertor/internal/encrypt"
	"github.com/convkit/convertor/internal/model"
)

// Query is a decoded request query string. The server reconstructs the full
// conversion context from it without storing per-user state.
type Query struct {
	SubURL    *url.URL
	EncSubURL string
	Interval  int
	Strict    bool

	// Policy is set only on rule-provider requests.
	Policy *model.Policy

	// Secret and EncSecret are set only on sub-logs requests.
	Secret    string
	EncSecret string
}

// QueryError reports a missing or malformed query parameter.
type QueryError struct {
	Param  string
	Reason string
	Cause  error
}

func (e *QueryError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("查询参数 %s 无效: %s", e.Param, e.Reason)
	}
	return fmt.Sprintf("查询参数 %s 无效: %s: %v", e.Param, e.Reason, e.Cause)
}

func (e *QueryError) Unwrap() error { return e.Cause }

// ParseQuery decodes a query string with the shared secret. sub_url is
// required; interval defaults to DefaultInterval and strict to true.
func ParseQuery(values url.Values, secret string, opts ...encrypt.Option) (*Query, error) {
	codec := encrypt.New([]byte(secret), opts...)

	encSubURL := values.Get("sub_url")
	if encSubURL == "" {
		return nil, &QueryError{Param: "sub_url", Reason: "缺失"}
	}
	rawSubURL, err := codec.Decrypt(encSubURL)
	if err != nil {
		return nil, &QueryError{Param: "sub_url", Reason: "无法解密", Cause: err}
	}
	subURL, err := url.Parse(rawSubURL)
	if err != nil {
		return nil, &QueryError{Param: "sub_url", Reason: "不是合法的 URL", Cause: err}
	}

	q := &Query{
		SubURL:    subURL,
		EncSubURL: encSubURL,
		Interval:  DefaultInterval,
		Strict:    true,
	}

	if s := values.Get("interval"); s != "" {
		q.Interval, err = strconv.Atoi(s)
		if err != nil || q.Interval <= 0 {
			return nil, &QueryError{Param: "interval", Reason: "应当是正整数", Cause: err}
		}
	}
	if s := values.Get("strict"); s != "" {
		q.Strict, err = strconv.ParseBool(s)
		if err != nil {
			return nil, &QueryError{Param: "strict", Reason: "应当是布尔值", Cause: err}
		}
	}

	if q.Policy, err = parsePolicy(values); err != nil {
		return nil, err
	}

	if enc := values.Get("secret"); enc != "" {
		plain, err := codec.Decrypt(enc)
		if err != nil {
			return nil, &QueryError{Param: "secret", Reason: "无法解密", Cause: err}
		}
		q.Secret = plain
		q.EncSecret = enc
	}
	return q, nil
}

// parsePolicy assembles the optional policy triple. The name and the
// subscription flag must travel together; the option is optional.
func parsePolicy(values url.Values) (*model.Policy, error) {
	name := values.Get("policy[name]")
	subFlag := values.Get("policy[is_subscription]")
	if name == "" && subFlag == "" {
		return nil, nil
	}
	if name == "" || subFlag == "" {
		return nil, &QueryError{Param: "policy", Reason: "policy[name] 和 policy[is_subscription] 必须同时出现"}
	}
	isSub, err := strconv.ParseBool(subFlag)
	if err != nil {
		return nil, &QueryError{Param: "policy[is_subscription]", Reason: "应当是布尔值", Cause: err}
	}
	return &model.Policy{
		Name:           name,
		Option:         values.Get("policy[option]"),
		IsSubscription: isSub,
	}, nil
}

// FromQuery rebuilds a Builder on the server side, reusing the encrypted
// forms from the request so round-tripped URLs stay byte-identical.
func FromQuery(q *Query, secret string, client model.Client, provider string, server *url.URL, opts ...encrypt.Option) (*Builder, error) {
	b, err := New(secret, client, provider, server, q.SubURL, q.Interval, q.Strict, opts...)
	if err != nil {
		return nil, err
	}
	b.EncSubURL = q.EncSubURL
	if q.EncSecret != "" {
		b.EncSecret = q.EncSecret
	}
	return b, nil
}
