// Package httpcache implements the outbound response cache attached to
// every guest HTTP call: a read-through, fingerprint-keyed cache over
// the state store, with at most one upstream fetch in flight per
// fingerprint.
package httpcache

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/augentic/yetti/capabilities"
	"github.com/augentic/yetti/errors"
)

// HitHeader marks a response served from the cache.
const HitHeader = "X-Cache"

// forbiddenHeaders are stripped from every response leaving the cache.
var forbiddenHeaders = []string{
	"Connection",
	"Host",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Transfer-Encoding",
	"Upgrade",
	"Keep-Alive",
	"Proxy-Connection",
	"Http2-Settings",
}

// Cache wraps an HttpRequest implementation with the outbound cache.
// Safe for concurrent use.
type Cache struct {
	next    capabilities.HttpRequest
	kv      capabilities.StateStore
	headers []string // header subset folded into the fingerprint
	group   singleflight.Group
}

// New creates a cache in front of next, storing entries in kv. headers
// selects the request headers that participate in the fingerprint.
func New(next capabilities.HttpRequest, kv capabilities.StateStore, headers ...string) *Cache {
	return &Cache{next: next, kv: kv, headers: headers}
}

// entry is the stored form of a cached response.
type entry struct {
	Status  int                 `json:"status"`
	Headers map[string][]string `json:"headers"`
	Body    []byte              `json:"body"`
}

// Fetch implements capabilities.HttpRequest. Requests without a
// max-age directive bypass the cache entirely.
func (c *Cache) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	ttl := FromRequest(req)
	if ttl <= 0 {
		return c.next.Fetch(ctx, req)
	}

	body, err := collectBody(req)
	if err != nil {
		return nil, errors.Decode("collect request body", err)
	}
	fp := Fingerprint(req, body, c.headers)

	if cached, ok := c.lookup(ctx, fp); ok {
		resp := cached.response()
		resp.Header.Set(HitHeader, "hit")
		return resp, nil
	}

	v, err, _ := c.group.Do(fp, func() (any, error) {
		return c.fill(ctx, req, fp, ttl)
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry).response(), nil
}

// lookup reads the cache. A KV failure is logged at debug level and
// treated as a miss; it never reaches the caller.
func (c *Cache) lookup(ctx context.Context, fp string) (*entry, bool) {
	raw, found, err := c.kv.Get(ctx, fp)
	if err != nil {
		Logger().Debug("cache read failed",
			zap.String("fingerprint", fp),
			zap.Error(errors.CacheFailed("get", err)))
		return nil, false
	}
	if !found {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		Logger().Debug("cache entry corrupt", zap.String("fingerprint", fp), zap.Error(err))
		return nil, false
	}
	return &e, true
}

// fill performs the single in-flight upstream fetch for a fingerprint.
// Failures are shared by all waiters and never cached.
func (c *Cache) fill(ctx context.Context, req *http.Request, fp string, ttl time.Duration) (*entry, error) {
	resp, err := c.next.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.TransportInternal("read response body", err)
	}

	headers := make(map[string][]string, len(resp.Header))
	for k, vs := range resp.Header {
		headers[k] = append([]string(nil), vs...)
	}
	e := &entry{
		Status:  resp.StatusCode,
		Headers: headers,
		Body:    respBody,
	}
	e.strip()
	e.Headers[http.CanonicalHeaderKey("ETag")] = []string{fp}

	encoded, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Internal(errors.PhaseCache, "encode cache entry", err)
	}
	if err := c.kv.Set(ctx, fp, encoded, ttl); err != nil {
		Logger().Debug("cache write failed",
			zap.String("fingerprint", fp),
			zap.Error(errors.CacheFailed("set", err)))
	}
	return e, nil
}

func (e *entry) strip() {
	for _, h := range forbiddenHeaders {
		delete(e.Headers, http.CanonicalHeaderKey(h))
	}
}

// response materializes an independent http.Response for one caller.
func (e *entry) response() *http.Response {
	header := make(http.Header, len(e.Headers))
	for k, vs := range e.Headers {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	return &http.Response{
		StatusCode:    e.Status,
		Status:        http.StatusText(e.Status),
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
	}
}

// collectBody reads and restores the request body so the fingerprint can
// include it.
func collectBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	if !strings.EqualFold(req.Method, http.MethodGet) {
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	return body, nil
}
