package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestText_UnsupportedScheme(t *testing.T) {
	_, err := Text(context.Background(), "file:///etc/passwd")
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if fe.Status != http.StatusBadRequest {
		t.Fatalf("status=%d, want=%d", fe.Status, http.StatusBadRequest)
	}
	if fe.Code != "INVALID_ARGUMENT" {
		t.Fatalf("code=%q, want=%q", fe.Code, "INVALID_ARGUMENT")
	}
}

func TestText_TooLarge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 32)))
	}))
	defer ts.Close()

	_, err := TextWithOptions(context.Background(), ts.URL, Options{MaxBytes: 10})
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if fe.Status != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want=%d", fe.Status, http.StatusUnprocessableEntity)
	}
	if fe.Code != "TOO_LARGE" {
		t.Fatalf("code=%q, want=%q", fe.Code, "TOO_LARGE")
	}
}

func TestText_InvalidUTF8(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 0xff is always invalid in UTF-8.
		_, _ = w.Write([]byte{0xff, 0xfe, 0xfd})
	}))
	defer ts.Close()

	_, err := Text(context.Background(), ts.URL)
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if fe.Status != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want=%d", fe.Status, http.StatusUnprocessableEntity)
	}
	if fe.Code != "FETCH_INVALID_UTF8" {
		t.Fatalf("code=%q, want=%q", fe.Code, "FETCH_INVALID_UTF8")
	}
}

func TestText_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	_, err := TextWithOptions(context.Background(), ts.URL, Options{Timeout: 50 * time.Millisecond})
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if fe.Status != http.StatusGatewayTimeout {
		t.Fatalf("status=%d, want=%d", fe.Status, http.StatusGatewayTimeout)
	}
	if fe.Code != "FETCH_TIMEOUT" {
		t.Fatalf("code=%q, want=%q", fe.Code, "FETCH_TIMEOUT")
	}
}

func TestText_TooManyRedirects(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, ts.URL, http.StatusFound)
	}))
	defer ts.Close()

	_, err := TextWithOptions(context.Background(), ts.URL, Options{MaxRedirects: 2})
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if fe.Status != http.StatusBadGateway {
		t.Fatalf("status=%d, want=%d", fe.Status, http.StatusBadGateway)
	}
	if fe.Code != "FETCH_FAILED" {
		t.Fatalf("code=%q, want=%q", fe.Code, "FETCH_FAILED")
	}
}

func TestText_RedirectToNonHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "file:///etc/passwd", http.StatusFound)
	}))
	defer ts.Close()

	_, err := TextWithOptions(context.Background(), ts.URL, Options{MaxRedirects: 5})
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if fe.Status != http.StatusBadRequest {
		t.Fatalf("status=%d, want=%d", fe.Status, http.StatusBadRequest)
	}
	if fe.Code != "INVALID_ARGUMENT" {
		t.Fatalf("code=%q, want=%q", fe.Code, "INVALID_ARGUMENT")
	}
}

func TestText_SendsHeaders(t *testing.T) {
	var gotUA, gotToken string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotToken = r.Header.Get("X-Token")
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	body, err := TextWithOptions(context.Background(), ts.URL, Options{
		UserAgent: "surge/5",
		Headers:   map[string]string{"X-Token": "abc"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "ok" {
		t.Fatalf("body=%q, want=%q", body, "ok")
	}
	if gotUA != "surge/5" {
		t.Fatalf("user-agent=%q, want=%q", gotUA, "surge/5")
	}
	if gotToken != "abc" {
		t.Fatalf("x-token=%q, want=%q", gotToken, "abc")
	}
}
