package httpcache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FromRequest extracts the cache directive. It returns zero when the
// request carries no "cache-control: max-age=N" directive, which
// disables caching for that call.
func FromRequest(req *http.Request) time.Duration {
	for _, part := range strings.Split(req.Header.Get("Cache-Control"), ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || !strings.EqualFold(k, "max-age") {
			continue
		}
		secs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	return 0
}

// Fingerprint computes the cache key for a request: the hex SHA-256 of a
// canonical serialization of method, scheme, authority, decoded path,
// key-sorted query, the selected header subset, and a hash of the body.
// The algorithm is a wire contract; changing it resets every deployed
// cache.
func Fingerprint(req *http.Request, body []byte, headers []string) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	write(strings.ToUpper(req.Method))
	write(strings.ToLower(req.URL.Scheme))
	write(strings.ToLower(req.URL.Host))
	write(req.URL.Path) // already percent-decoded

	write(canonicalQuery(req))

	for _, name := range headers {
		write(strings.ToLower(name) + ":" + req.Header.Get(name))
	}

	bodySum := sha256.Sum256(body)
	write(hex.EncodeToString(bodySum[:]))

	return hex.EncodeToString(h.Sum(nil))
}

// canonicalQuery renders the query with keys and per-key values sorted,
// so parameter order never affects the fingerprint.
func canonicalQuery(req *http.Request) string {
	values := req.URL.Query()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		vs := append([]string(nil), values[k]...)
		sort.Strings(vs)
		for _, v := range vs {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	return b.String()
}
