package http

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/augentic/yetti/errors"
)

func TestSendStripsForbiddenHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Proxy-Authenticate", "Basic")
		w.Header().Set("Upgrade", "h2c")
		w.Header().Set("Keep-Alive", "timeout=5")
		w.Header().Set("X-Custom", "kept")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	p := NewProxy(ProxyOptions{})
	req, _ := http.NewRequest(http.MethodGet, upstream.URL, nil)

	resp, err := p.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	defer resp.Body.Close()

	for _, h := range forbiddenHeaders {
		if got := resp.Header.Get(h); got != "" {
			t.Errorf("forbidden header %s survived: %q", h, got)
		}
	}
	if resp.Header.Get("X-Custom") != "kept" {
		t.Error("ordinary header was stripped")
	}
}

func TestSendInvalidURI(t *testing.T) {
	p := NewProxy(ProxyOptions{})
	req := &http.Request{Method: http.MethodGet}

	_, err := p.Send(context.Background(), req)
	if !stderrors.Is(err, errors.Transport(errors.CodeURIInvalid, nil)) {
		t.Errorf("error = %v, want code %s", err, errors.CodeURIInvalid)
	}
}

func TestSendConnectionRefused(t *testing.T) {
	// A listener that is immediately closed leaves a port nothing accepts on.
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	p := NewProxy(ProxyOptions{})
	req, _ := http.NewRequest(http.MethodGet, url, nil)

	_, err := p.Send(context.Background(), req)
	if !stderrors.Is(err, errors.Transport(errors.CodeConnectionRefused, nil)) {
		t.Errorf("error = %v, want code %s", err, errors.CodeConnectionRefused)
	}
}

func TestSendTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	p := NewProxy(ProxyOptions{Timeout: 50 * time.Millisecond})
	req, _ := http.NewRequest(http.MethodGet, slow.URL, nil)

	_, err := p.Send(context.Background(), req)
	if !stderrors.Is(err, errors.Transport(errors.CodeConnectionTimeout, nil)) {
		t.Errorf("error = %v, want code %s", err, errors.CodeConnectionTimeout)
	}
}

func TestClientCertHeaderNotForwarded(t *testing.T) {
	var seen string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(ClientCertHeader)
	}))
	defer upstream.Close()

	p := NewProxy(ProxyOptions{})
	req, _ := http.NewRequest(http.MethodGet, upstream.URL, nil)
	// An invalid identity fails before the request leaves the proxy.
	req.Header.Set(ClientCertHeader, "not base64 pem!")
	if _, err := p.Send(context.Background(), req); err == nil {
		t.Error("expected error for malformed client cert")
	}
	if seen != "" {
		t.Errorf("Client-Cert reached upstream: %q", seen)
	}
}

func TestListenAddr(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080": "localhost:8080",
		"localhost:9090":        "localhost:9090",
		":8080":                 ":8080",
	}
	for in, want := range cases {
		got, err := listenAddr(in)
		if err != nil {
			t.Errorf("listenAddr(%q) error = %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("listenAddr(%q) = %q, want %q", in, got, want)
		}
	}
}
