package guest

import (
	"strings"
)

// compiledRoute is a route with its pattern split for matching and its
// derived handler name.
type compiledRoute struct {
	Route
	segments []string
	name     string
}

// splitPath breaks a path into segments, ignoring empty ones.
func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isPlaceholder(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}

// match reports whether the route's pattern is a prefix of the path
// segments, capturing placeholder values.
func (r *compiledRoute) match(method string, path []string) (map[string]string, bool) {
	if !strings.EqualFold(method, r.Method) {
		return nil, false
	}
	if len(path) < len(r.segments) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range r.segments {
		if isPlaceholder(seg) {
			if params == nil {
				params = make(map[string]string)
			}
			params[seg[1:len(seg)-1]] = path[i]
			continue
		}
		if seg != path[i] {
			return nil, false
		}
	}
	return params, true
}

// route finds the best match for a request: the matching route with the
// most pattern segments wins, literal segments break ties, declaration
// order breaks the rest.
func (g *Guest) route(method, path string) (*compiledRoute, map[string]string, bool) {
	segments := splitPath(path)

	var best *compiledRoute
	var bestParams map[string]string
	bestLiterals := -1
	for i := range g.routes {
		r := &g.routes[i]
		params, ok := r.match(method, segments)
		if !ok {
			continue
		}
		literals := 0
		for _, seg := range r.segments {
			if !isPlaceholder(seg) {
				literals++
			}
		}
		if best == nil ||
			len(r.segments) > len(best.segments) ||
			(len(r.segments) == len(best.segments) && literals > bestLiterals) {
			best = r
			bestParams = params
			bestLiterals = literals
		}
	}
	if best == nil {
		return nil, nil, false
	}
	return best, bestParams, true
}
