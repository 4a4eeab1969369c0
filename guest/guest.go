// Package guest is the dispatch fabric a component author builds their
// program from: a declarative spec of routes and topics, validated at
// construction, dispatching inbound events into typed handlers.
package guest

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/augentic/yetti/capabilities"
	"github.com/augentic/yetti/errors"
)

// Topic declares one messaging entry point. A topic matches when the
// delivered topic name contains Pattern as a substring; declaration
// order decides between multiple matches. Build one with On so the
// message type is checked at compile time.
type Topic struct {
	Pattern string

	// build decodes a delivered payload into a fresh message value.
	build func(payload []byte) (Handler, error)
}

// On declares a topic whose payload is JSON-decoded into M.
func On[M any, P handlerPtr[M]](pattern string) Topic {
	return Topic{
		Pattern: pattern,
		build: func(payload []byte) (Handler, error) {
			var m M
			if len(payload) > 0 {
				if err := json.Unmarshal(payload, &m); err != nil {
					return nil, errors.Decode(err.Error(), err)
				}
			}
			return P(&m), nil
		},
	}
}

// Spec declares a guest program. All ambiguity is rejected at New; a
// spec that constructs never fails to dispatch deterministically.
type Spec struct {
	// Owner identifies the guest in every handler context.
	Owner string

	// Provider builds the capability facade handlers receive. Called
	// once per dispatched event.
	Provider func() capabilities.Provider

	HTTP      []Route
	Messaging []Topic
}

// Guest is a validated spec ready to dispatch events.
type Guest struct {
	owner    string
	provider func() capabilities.Provider
	routes   []compiledRoute
	topics   []Topic
}

// New validates the Spec. Duplicate (method, pattern) pairs and derived
// handler-name collisions fail construction.
func New(spec Spec) (*Guest, error) {
	if spec.Owner == "" {
		return nil, errors.Collision("spec owner is required")
	}
	if spec.Provider == nil {
		return nil, errors.Collision("spec provider is required")
	}

	seen := make(map[string]string) // method+pattern -> ""
	names := make(map[string]string)
	routes := make([]compiledRoute, 0, len(spec.HTTP))
	for _, r := range spec.HTTP {
		key := r.Method + " " + r.Pattern
		if _, dup := seen[key]; dup {
			return nil, errors.Collision(fmt.Sprintf("duplicate route %s", key))
		}
		seen[key] = ""

		name := handlerName(r.Pattern)
		if prev, dup := names[name]; dup {
			return nil, errors.Collision(fmt.Sprintf(
				"routes %q and %q derive the same handler name %s", prev, r.Pattern, name))
		}
		names[name] = r.Pattern

		routes = append(routes, compiledRoute{
			Route:    r,
			segments: splitPath(r.Pattern),
			name:     name,
		})
	}

	for _, t := range spec.Messaging {
		if t.Pattern == "" || t.build == nil {
			return nil, errors.Collision("topic needs a pattern and a message type")
		}
	}

	return &Guest{
		owner:    spec.Owner,
		provider: spec.Provider,
		routes:   routes,
		topics:   spec.Messaging,
	}, nil
}

// handlerName derives the per-route handler identifier from its pattern:
// every non-identifier rune becomes an underscore. Two patterns mapping
// to the same identifier are ambiguous and rejected.
func handlerName(pattern string) string {
	var b strings.Builder
	b.WriteString("handle_")
	for _, r := range strings.Trim(pattern, "/") {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Owner returns the guest's owner identity.
func (g *Guest) Owner() string { return g.owner }

// Routes returns the declared route patterns in declaration order.
func (g *Guest) Routes() []string {
	out := make([]string, len(g.routes))
	for i, r := range g.routes {
		out[i] = r.Method + " " + r.Pattern
	}
	return out
}

// Topics returns the declared topic patterns in declaration order.
func (g *Guest) Topics() []string {
	out := make([]string, len(g.topics))
	for i, t := range g.topics {
		out[i] = t.Pattern
	}
	return out
}
