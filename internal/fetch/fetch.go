// Package fetch downloads remote text resources (subscription profiles) with
// strict limits on size, redirects and time.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"
)

type Options struct {
	Timeout      time.Duration     // default 15s
	MaxBytes     int64             // default 5 MiB
	MaxRedirects int               // default 5
	UserAgent    string            // default left to net/http
	Headers      map[string]string // extra request headers
}

// Error carries the HTTP status the service should answer with when a fetch
// fails, alongside a stable machine code.
type Error struct {
	Status  int
	Code    string
	Message string
	URL     string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

var (
	errTooManyRedirects   = errors.New("too many redirects")
	errRedirectBadScheme  = errors.New("redirect target scheme is not http/https")
	errInvalidURLOrScheme = errors.New("invalid url or scheme")
)

// Text fetches rawURL and returns its body as UTF-8 text.
func Text(ctx context.Context, rawURL string) (string, error) {
	return TextWithOptions(ctx, rawURL, Options{})
}

func TextWithOptions(ctx context.Context, rawURL string, opt Options) (string, error) {
	timeout := opt.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	maxRedirects := opt.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = 5
	}
	maxBytes := opt.MaxBytes
	if maxBytes == 0 {
		maxBytes = 5 * 1024 * 1024
	}
	if maxBytes <= 0 {
		return "", &Error{
			Status:  http.StatusBadRequest,
			Code:    "INVALID_ARGUMENT",
			Message: "响应大小上限必须大于 0",
			URL:     rawURL,
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil || u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", &Error{
			Status:  http.StatusBadRequest,
			Code:    "INVALID_ARGUMENT",
			Message: "仅允许 http/https URL",
			URL:     rawURL,
			Cause:   errors.Join(errInvalidURLOrScheme, err),
		}
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: http.DefaultTransport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// via is the chain of previous requests; allow up to
			// maxRedirects redirects.
			if len(via) > maxRedirects {
				return errTooManyRedirects
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return errRedirectBadScheme
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &Error{
			Status:  http.StatusBadRequest,
			Code:    "INVALID_ARGUMENT",
			Message: "请求 URL 不合法",
			URL:     rawURL,
			Cause:   err,
		}
	}
	if opt.UserAgent != "" {
		req.Header.Set("User-Agent", opt.UserAgent)
	}
	for k, v := range opt.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		// CheckRedirect sentinel errors.
		if errors.Is(err, errTooManyRedirects) {
			return "", &Error{
				Status:  http.StatusBadGateway,
				Code:    "FETCH_FAILED",
				Message: fmt.Sprintf("重定向次数超过上限（>%d）", maxRedirects),
				URL:     rawURL,
				Cause:   err,
			}
		}
		if errors.Is(err, errRedirectBadScheme) {
			return "", &Error{
				Status:  http.StatusBadRequest,
				Code:    "INVALID_ARGUMENT",
				Message: "重定向目标仅允许 http/https",
				URL:     rawURL,
				Cause:   err,
			}
		}

		// Timeout detection: Go may wrap errors (e.g. *url.Error).
		var ne net.Error
		if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
			return "", &Error{
				Status:  http.StatusGatewayTimeout,
				Code:    "FETCH_TIMEOUT",
				Message: "拉取远程资源超时",
				URL:     rawURL,
				Cause:   err,
			}
		}

		return "", &Error{
			Status:  http.StatusBadGateway,
			Code:    "FETCH_FAILED",
			Message: "拉取远程资源失败",
			URL:     rawURL,
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{
			Status:  http.StatusBadGateway,
			Code:    "FETCH_FAILED",
			Message: fmt.Sprintf("上游返回非 2xx 状态码：%d", resp.StatusCode),
			URL:     rawURL,
		}
	}

	// Read at most maxBytes+1 to detect overflow deterministically.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return "", &Error{
				Status:  http.StatusGatewayTimeout,
				Code:    "FETCH_TIMEOUT",
				Message: "拉取远程资源超时",
				URL:     rawURL,
				Cause:   err,
			}
		}
		return "", &Error{
			Status:  http.StatusBadGateway,
			Code:    "FETCH_FAILED",
			Message: "读取上游响应失败",
			URL:     rawURL,
			Cause:   err,
		}
	}
	if int64(len(body)) > maxBytes {
		return "", &Error{
			Status:  http.StatusUnprocessableEntity,
			Code:    "TOO_LARGE",
			Message: fmt.Sprintf("远程资源过大（>%d bytes）", maxBytes),
			URL:     rawURL,
		}
	}
	if !utf8.Valid(body) {
		return "", &Error{
			Status:  http.StatusUnprocessableEntity,
			Code:    "FETCH_INVALID_UTF8",
			Message: "远程资源不是合法 UTF-8 文本",
			URL:     rawURL,
		}
	}

	return string(body), nil
}
