// Package provider talks to the subscription provider's panel API: logging
// in, resolving the raw subscription URL, resetting it, and pulling access
// logs.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/convkit/convertor/internal/config"
)

const (
	loginPath   = "/passport/auth/login"
	subURLPath  = "/user/getSubscribe"
	resetPath   = "/user/resetSecurity"
	subLogsPath = "/user/stat/getSubscribeLog"
)

// Error carries the panel API operation that failed and the HTTP status the
// panel answered with (0 when the request never completed).
type Error struct {
	Op      string
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// SubLog is one subscription access record.
type SubLog struct {
	UserID    int64  `json:"user_id"`
	IP        string `json:"ip"`
	Location  string `json:"location"`
	ISP       string `json:"isp"`
	Host      string `json:"host"`
	UA        string `json:"ua"`
	CreatedAt int64  `json:"created_at"`
}

type Client struct {
	base     *url.URL
	email    string
	password string
	ua       string
	headers  map[string]string
	http     *http.Client

	mu    sync.Mutex
	token string
}

// New builds a panel API client from a provider account.
func New(p config.Provider) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(p.APIBaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &Error{Op: "new", Message: fmt.Sprintf("api_base_url 不是合法的绝对 URL: %q", p.APIBaseURL), Cause: err}
	}
	return &Client{
		base:     base,
		email:    p.Email,
		password: p.Password,
		ua:       p.UserAgent,
		headers:  p.Headers,
		http:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

// Login authenticates with the panel and caches the auth token for later
// calls. It returns the cached token when one is already held.
func (c *Client) Login(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) (string, error) {
	if c.token != "" {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("email", c.email)
	form.Set("password", c.password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(loginPath), strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Error{Op: "login", Message: "构造登录请求失败", Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.applyHeaders(req, "")

	var payload struct {
		Data struct {
			AuthData string `json:"auth_data"`
		} `json:"data"`
	}
	if err := c.do(req, "login", &payload); err != nil {
		return "", err
	}
	if payload.Data.AuthData == "" {
		return "", &Error{Op: "login", Message: "登录响应缺少 auth_data"}
	}
	c.token = payload.Data.AuthData
	return c.token, nil
}

// SubURL resolves the account's raw subscription URL.
func (c *Client) SubURL(ctx context.Context) (*url.URL, error) {
	var payload struct {
		Data struct {
			SubscribeURL string `json:"subscribe_url"`
		} `json:"data"`
	}
	if err := c.authed(ctx, http.MethodGet, subURLPath, "sub_url", &payload); err != nil {
		return nil, err
	}
	return parseSubURL("sub_url", payload.Data.SubscribeURL)
}

// ResetSubURL asks the panel to rotate the subscription token and returns the
// fresh URL.
func (c *Client) ResetSubURL(ctx context.Context) (*url.URL, error) {
	var payload struct {
		Data string `json:"data"`
	}
	if err := c.authed(ctx, http.MethodPost, resetPath, "reset_sub_url", &payload); err != nil {
		return nil, err
	}
	return parseSubURL("reset_sub_url", payload.Data)
}

// SubLogs pulls the subscription access log, newest first as the panel
// returns it.
func (c *Client) SubLogs(ctx context.Context) ([]SubLog, error) {
	var payload struct {
		Data []SubLog `json:"data"`
	}
	if err := c.authed(ctx, http.MethodGet, subLogsPath, "sub_logs", &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// authed performs one authenticated call, logging in first when no token is
// cached and retrying once on 401 with a fresh login.
func (c *Client) authed(ctx context.Context, method, path, op string, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.loginLocked(ctx)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), nil)
		if err != nil {
			return &Error{Op: op, Message: "构造请求失败", Cause: err}
		}
		c.applyHeaders(req, token)

		err = c.do(req, op, out)
		if err == nil {
			return nil
		}
		var pe *Error
		if attempt == 0 && errors.As(err, &pe) && pe.Status == http.StatusUnauthorized {
			// Stale token; drop it and log in again.
			c.token = ""
			continue
		}
		return err
	}
	return &Error{Op: op, Message: "认证失败"}
}

func (c *Client) applyHeaders(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Message: "请求服务商接口失败", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Message: "读取服务商响应失败", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Op: op, Status: resp.StatusCode, Message: fmt.Sprintf("服务商接口返回非 2xx 状态码：%d", resp.StatusCode)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Message: "解析服务商响应失败", Cause: err}
	}
	return nil
}

func parseSubURL(op, raw string) (*url.URL, error) {
	if raw == "" {
		return nil, &Error{Op: op, Message: "响应缺少订阅 URL"}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &Error{Op: op, Message: fmt.Sprintf("订阅 URL 不合法: %q", raw), Cause: err}
	}
	return u, nil
}
