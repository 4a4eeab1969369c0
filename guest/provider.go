package guest

import (
	"context"
	"net/http"

	"github.com/augentic/yetti/capabilities"
	"github.com/augentic/yetti/httpcache"
)

// cachedProvider routes outbound HTTP through the response cache while
// delegating everything else to the base provider. The cache stores its
// entries in the provider's own state store, so guest-side and host-side
// fetches observe the same cache.
type cachedProvider struct {
	capabilities.Provider
	cache *httpcache.Cache
}

// WithCache wraps a provider so every Fetch goes through the outbound
// response cache. Requests without a max-age directive are unaffected.
func WithCache(p capabilities.Provider, fingerprintHeaders ...string) capabilities.Provider {
	return &cachedProvider{
		Provider: p,
		cache:    httpcache.New(p, p.State(), fingerprintHeaders...),
	}
}

func (c *cachedProvider) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.cache.Fetch(ctx, req)
}
