package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmylchreest/livegate/pkg/live"
)

func TestColly_Get_SendsHeaders(t *testing.T) {
	var gotUA, gotCookie, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		gotReferer = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	tr := NewColly(Config{UserAgent: "test-agent"})
	resp, err := tr.Get(context.Background(), srv.URL, map[string]string{
		"Cookie":  "a=1;b=2;",
		"Referer": "https://live.douyin.com",
	})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if string(resp.Body) != "<html>ok</html>" {
		t.Errorf("Body = %q", resp.Body)
	}
	if gotUA != "test-agent" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotCookie != "a=1;b=2;" {
		t.Errorf("Cookie = %q", gotCookie)
	}
	if gotReferer != "https://live.douyin.com" {
		t.Errorf("Referer = %q", gotReferer)
	}
}

func TestColly_Get_HeaderOverridesUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	_, err := NewColly(Config{}).Get(context.Background(), srv.URL, map[string]string{"User-Agent": "session-agent"})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if gotUA != "session-agent" {
		t.Errorf("User-Agent = %q, want session-agent", gotUA)
	}
}

func TestColly_Get_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	resp, err := NewColly(Config{}).Get(context.Background(), srv.URL, nil)
	if !errors.Is(err, live.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", resp.StatusCode)
	}
}

func TestColly_Get_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := NewColly(Config{Timeout: 2 * time.Second}).Get(context.Background(), addr, nil)
	if !errors.Is(err, live.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestNewColly_Defaults(t *testing.T) {
	tr := NewColly(Config{})
	if tr.config.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q", tr.config.UserAgent)
	}
	if tr.config.Timeout != DefaultConfig().Timeout {
		t.Errorf("Timeout = %v", tr.config.Timeout)
	}
}
