package guest

import (
	"encoding/json"
	"net/http"

	"github.com/augentic/yetti/errors"
)

// Decode selects how the inbound request is turned into the handler's
// request value.
type Decode int

const (
	// None ignores the request body and query; only path placeholders
	// reach the decoder.
	None Decode = iota

	// WithBody collects the full body and JSON-decodes it, with path
	// placeholders overlaid under their names.
	WithBody

	// WithQuery parses the query string into key/value pairs and decodes
	// those, with path placeholders under their names.
	WithQuery
)

// handlerPtr constrains P to be a pointer to R that handles requests.
type handlerPtr[R any] interface {
	*R
	Handler
}

// Route declares one HTTP entry point. Build one with GET, POST, PUT, or
// DELETE so the request type is checked at compile time.
type Route struct {
	Method  string
	Pattern string
	Mode    Decode

	// build decodes the merged input document into a fresh request value.
	build func(input []byte) (Handler, error)
}

// GET declares a GET route decoded into R.
func GET[R any, P handlerPtr[R]](pattern string, mode Decode) Route {
	return newRoute[R, P](http.MethodGet, pattern, mode)
}

// POST declares a POST route decoded into R.
func POST[R any, P handlerPtr[R]](pattern string, mode Decode) Route {
	return newRoute[R, P](http.MethodPost, pattern, mode)
}

// PUT declares a PUT route decoded into R.
func PUT[R any, P handlerPtr[R]](pattern string, mode Decode) Route {
	return newRoute[R, P](http.MethodPut, pattern, mode)
}

// DELETE declares a DELETE route decoded into R.
func DELETE[R any, P handlerPtr[R]](pattern string, mode Decode) Route {
	return newRoute[R, P](http.MethodDelete, pattern, mode)
}

func newRoute[R any, P handlerPtr[R]](method, pattern string, mode Decode) Route {
	return Route{
		Method:  method,
		Pattern: pattern,
		Mode:    mode,
		build: func(input []byte) (Handler, error) {
			var r R
			if len(input) > 0 {
				if err := json.Unmarshal(input, &r); err != nil {
					return nil, errors.Decode(err.Error(), err)
				}
			}
			return P(&r), nil
		},
	}
}
