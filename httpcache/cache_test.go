package httpcache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augentic/yetti/wasi/keyvalue"
)

// fakeUpstream is a counting HttpRequest implementation.
type fakeUpstream struct {
	calls   atomic.Int64
	release chan struct{} // when set, fetches block until closed
	respond func(req *http.Request) (*http.Response, error)
}

func (f *fakeUpstream) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.respond != nil {
		return f.respond(req)
	}
	return textResponse(http.StatusOK, "upstream payload"), nil
}

func textResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"text/plain"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func cachedGet(t *testing.T, c *Cache, url string, maxAge int) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if maxAge > 0 {
		req.Header.Set("Cache-Control", fmt.Sprintf("max-age=%d", maxAge))
	}
	resp, err := c.Fetch(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return string(body)
}

func TestCacheHit(t *testing.T) {
	up := &fakeUpstream{}
	c := New(up, keyvalue.NewMemoryStore())

	first := cachedGet(t, c, "http://api.example.com/trips?vehicle_id=abc", 60)
	firstBody := readBody(t, first)
	assert.Empty(t, first.Header.Get(HitHeader))

	second := cachedGet(t, c, "http://api.example.com/trips?vehicle_id=abc", 60)
	secondBody := readBody(t, second)

	assert.Equal(t, int64(1), up.calls.Load(), "exactly one upstream fetch")
	assert.Equal(t, firstBody, secondBody)
	assert.Equal(t, "hit", second.Header.Get(HitHeader))

	req, _ := http.NewRequest(http.MethodGet, "http://api.example.com/trips?vehicle_id=abc", nil)
	req.Header.Set("Cache-Control", "max-age=60")
	want := Fingerprint(req, nil, nil)
	assert.Equal(t, want, first.Header.Get("ETag"))
	assert.Equal(t, want, second.Header.Get("ETag"))
}

func TestCacheBypassWithoutDirective(t *testing.T) {
	up := &fakeUpstream{}
	c := New(up, keyvalue.NewMemoryStore())

	first := cachedGet(t, c, "http://api.example.com/trips", 0)
	second := cachedGet(t, c, "http://api.example.com/trips", 0)
	readBody(t, first)
	readBody(t, second)

	assert.Equal(t, int64(2), up.calls.Load(), "no directive, no caching")
	assert.Empty(t, first.Header.Get("ETag"))
	assert.Empty(t, second.Header.Get("ETag"))
}

func TestForbiddenHeadersStripped(t *testing.T) {
	up := &fakeUpstream{respond: func(*http.Request) (*http.Response, error) {
		resp := textResponse(http.StatusOK, "x")
		resp.Header.Set("Transfer-Encoding", "chunked")
		resp.Header.Set("Proxy-Connection", "keep-alive")
		return resp, nil
	}}
	c := New(up, keyvalue.NewMemoryStore())

	for i := 0; i < 2; i++ { // filled response, then cached response
		resp := cachedGet(t, c, "http://api.example.com/x", 60)
		readBody(t, resp)
		assert.Empty(t, resp.Header.Get("Transfer-Encoding"))
		assert.Empty(t, resp.Header.Get("Proxy-Connection"))
	}
}

func TestSingleFlight(t *testing.T) {
	release := make(chan struct{})
	up := &fakeUpstream{release: release}
	c := New(up, keyvalue.NewMemoryStore())

	const waiters = 8
	var wg sync.WaitGroup
	bodies := make([]string, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := cachedGet(t, c, "http://api.example.com/hot", 60)
			bodies[i] = readBody(t, resp)
		}(i)
	}

	// Give the goroutines time to pile onto the same fingerprint.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), up.calls.Load(), "one fetch shared by all waiters")
	for _, b := range bodies {
		assert.Equal(t, bodies[0], b)
	}
}

func TestFetchErrorNotCached(t *testing.T) {
	fail := true
	up := &fakeUpstream{respond: func(*http.Request) (*http.Response, error) {
		if fail {
			return nil, fmt.Errorf("upstream down")
		}
		return textResponse(http.StatusOK, "recovered"), nil
	}}
	c := New(up, keyvalue.NewMemoryStore())

	req, _ := http.NewRequest(http.MethodGet, "http://api.example.com/x", nil)
	req.Header.Set("Cache-Control", "max-age=60")
	_, err := c.Fetch(context.Background(), req)
	require.Error(t, err)

	fail = false
	resp := cachedGet(t, c, "http://api.example.com/x", 60)
	assert.Equal(t, "recovered", readBody(t, resp))
	assert.Equal(t, int64(2), up.calls.Load())
}

// brokenKV fails every operation.
type brokenKV struct{}

func (brokenKV) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("kv down")
}
func (brokenKV) Set(context.Context, string, []byte, time.Duration) error {
	return fmt.Errorf("kv down")
}
func (brokenKV) Delete(context.Context, string) error { return fmt.Errorf("kv down") }

func TestKVFailureProceedsUncached(t *testing.T) {
	up := &fakeUpstream{}
	c := New(up, brokenKV{})

	resp := cachedGet(t, c, "http://api.example.com/x", 60)
	assert.Equal(t, "upstream payload", readBody(t, resp))
	// The second call fetches again: nothing could be stored.
	resp = cachedGet(t, c, "http://api.example.com/x", 60)
	readBody(t, resp)
	assert.Equal(t, int64(2), up.calls.Load())
}

func TestFingerprintStability(t *testing.T) {
	base, _ := http.NewRequest("get", "http://API.Example.com/a%20b?b=2&a=1", nil)
	same, _ := http.NewRequest("GET", "http://api.example.com/a b?a=1&b=2", nil)
	other, _ := http.NewRequest("GET", "http://api.example.com/a b?a=1&b=3", nil)

	assert.Equal(t, Fingerprint(base, nil, nil), Fingerprint(same, nil, nil),
		"method case, query order, and percent-encoding are canonicalized")
	assert.NotEqual(t, Fingerprint(base, nil, nil), Fingerprint(other, nil, nil))

	tls, _ := http.NewRequest("GET", "https://api.example.com/a b?a=1&b=2", nil)
	assert.NotEqual(t, Fingerprint(same, nil, nil), Fingerprint(tls, nil, nil),
		"scheme is part of the cache key")
	tlsUpper, _ := http.NewRequest("GET", "HTTPS://api.example.com/a b?a=1&b=2", nil)
	assert.Equal(t, Fingerprint(tls, nil, nil), Fingerprint(tlsUpper, nil, nil),
		"scheme case is canonicalized")
}

func TestFingerprintSelectedHeaders(t *testing.T) {
	a, _ := http.NewRequest("GET", "http://api.example.com/", nil)
	a.Header.Set("Accept", "application/json")
	b, _ := http.NewRequest("GET", "http://api.example.com/", nil)
	b.Header.Set("Accept", "text/plain")

	assert.Equal(t, Fingerprint(a, nil, nil), Fingerprint(b, nil, nil),
		"unselected headers are ignored")
	assert.NotEqual(t, Fingerprint(a, nil, []string{"Accept"}),
		Fingerprint(b, nil, []string{"Accept"}))
}

func TestFingerprintBody(t *testing.T) {
	req, _ := http.NewRequest("POST", "http://api.example.com/", bytes.NewReader(nil))
	assert.NotEqual(t,
		Fingerprint(req, []byte(`{"a":1}`), nil),
		Fingerprint(req, []byte(`{"a":2}`), nil))
}

func TestFromRequest(t *testing.T) {
	cases := map[string]time.Duration{
		"max-age=60":           60 * time.Second,
		"no-store, max-age=10": 10 * time.Second,
		"Max-Age=5":            5 * time.Second,
		"no-store":             0,
		"max-age=bogus":        0,
		"":                     0,
	}
	for value, want := range cases {
		req, _ := http.NewRequest("GET", "http://x/", nil)
		if value != "" {
			req.Header.Set("Cache-Control", value)
		}
		assert.Equal(t, want, FromRequest(req), "cache-control: %s", value)
	}
}
