package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
)

func TestGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Error("expected a User-Agent header")
		}
		if ref := r.Header.Get("Referer"); ref == "" {
			t.Error("expected a Referer header")
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	body, err := c.Get(context.Background(), "/ping", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if body != "ok" {
		t.Errorf("body = %q, want %q", body, "ok")
	}
}

func TestPostFormSendsEncodedBody(t *testing.T) {
	var gotMode string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotMode = r.PostForm.Get("mode")
		_, _ = w.Write([]byte("<xml/>"))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.PostForm(context.Background(), "/ajaxPulldown", url.Values{"mode": {"line:full"}}); err != nil {
		t.Fatalf("PostForm: %v", err)
	}
	if gotMode != "line:full" {
		t.Errorf("mode = %q, want %q", gotMode, "line:full")
	}
}

func TestForbiddenFailsFastWithoutRetry(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.Get(context.Background(), "/ping", nil)
	if err == nil {
		t.Fatal("expected an error for 403")
	}
	var forbidden *ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected *ErrForbidden, got %T: %v", err, err)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("expected exactly 1 attempt for a 403, got %d", got)
	}
}

func TestUnexpectedStatusFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.Get(context.Background(), "/ping", nil)
	if err == nil {
		t.Fatal("expected an error for 500")
	}
	var unexpected *ErrUnexpectedStatus
	if !errors.As(err, &unexpected) {
		t.Fatalf("expected *ErrUnexpectedStatus, got %T: %v", err, err)
	}
}

func TestServiceUnavailableRetriesThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	body, err := c.Get(context.Background(), "/ping", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if body != "recovered" {
		t.Errorf("body = %q, want %q", body, "recovered")
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("expected 3 attempts before success, got %d", got)
	}
}

func TestServiceUnavailableExhaustsRetries(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.Get(context.Background(), "/ping", nil)
	if err == nil {
		t.Fatal("expected an error once retries are exhausted")
	}
	// maxRetries retries after the initial attempt: 1 + maxRetries total.
	if got := atomic.LoadInt32(&attempts); got != int32(1+maxRetries) {
		t.Errorf("expected %d attempts, got %d", 1+maxRetries, got)
	}
}
