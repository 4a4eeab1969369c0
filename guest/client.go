//go:build wasm

package guest

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/augentic/yetti/capabilities"
	"github.com/augentic/yetti/errors"
)

// Client implements the capability traits over the component's host
// imports. Build one per guest through NewProvider, which also routes
// outbound fetches through the response cache.
type Client struct {
	state stateClient
}

// NewClient builds the raw import-backed provider.
func NewClient() *Client {
	return &Client{}
}

// NewProvider builds the standard guest provider: import-backed
// capabilities with cached outbound HTTP.
func NewProvider(fingerprintHeaders ...string) capabilities.Provider {
	return WithCache(NewClient(), fingerprintHeaders...)
}

// Get returns the configuration value for key.
func (c *Client) Get(_ context.Context, key string) (string, error) {
	out, n := buffered(func(bufPtr, bufCap uint32) int64 {
		return hostConfigGet(stringPtr(key), uint32(len(key)), bufPtr, bufCap)
	})
	switch {
	case n == statusMiss:
		return "", errors.NotFound("wasi:config/store", "configuration key", key)
	case n < 0:
		return "", errors.Internal(errors.PhaseDispatch, "config get "+key, nil)
	}
	return string(out), nil
}

// fetchReply mirrors the host's response envelope.
type fetchReply struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
}

// Fetch sends req through the host's outbound proxy.
func (c *Client) Fetch(_ context.Context, req *http.Request) (*http.Response, error) {
	envelope := Request{
		Method:  req.Method,
		URI:     req.URL.String(),
		Headers: make(map[string]string, len(req.Header)),
	}
	for name, values := range req.Header {
		if len(values) > 0 {
			envelope.Headers[name] = values[0]
		}
	}
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, errors.TransportInternal("read request body", err)
		}
		envelope.Body = body
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, errors.TransportInternal("encode request", err)
	}

	out, n := buffered(func(bufPtr, bufCap uint32) int64 {
		return hostFetch(bytesPtr(payload), uint32(len(payload)), bufPtr, bufCap)
	})
	if n < 0 {
		return nil, errors.TransportInternal("fetch failed", nil)
	}

	var reply fetchReply
	if err := json.Unmarshal(out, &reply); err != nil {
		return nil, errors.TransportInternal("decode response", err)
	}
	if reply.Error != nil {
		code := errors.ParseCode(reply.Error.Code)
		if code == errors.CodeInternal {
			return nil, errors.TransportInternal(reply.Error.Message, nil)
		}
		return nil, errors.Transport(code, nil)
	}

	header := make(http.Header, len(reply.Headers))
	for name, value := range reply.Headers {
		header.Set(name, value)
	}
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode:    status,
		Status:        http.StatusText(status),
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(reply.Body)),
		ContentLength: int64(len(reply.Body)),
		Request:       req,
	}, nil
}

// Send publishes a message to a topic.
func (c *Client) Send(_ context.Context, topic string, msg capabilities.Message) error {
	var headers []byte
	if len(msg.Headers) > 0 {
		var err error
		headers, err = json.Marshal(msg.Headers)
		if err != nil {
			return errors.Internal(errors.PhaseDispatch, "encode message headers", err)
		}
	}
	n := hostPublish(
		stringPtr(topic), uint32(len(topic)),
		bytesPtr(msg.Payload), uint32(len(msg.Payload)),
		bytesPtr(headers), uint32(len(headers)),
	)
	if n < 0 {
		return errors.Internal(errors.PhaseDispatch, "publish "+topic, nil)
	}
	return nil
}

// AccessToken mints a token for the named identity.
func (c *Client) AccessToken(_ context.Context, identity string) (string, error) {
	out, n := buffered(func(bufPtr, bufCap uint32) int64 {
		return hostAccessToken(stringPtr(identity), uint32(len(identity)), bufPtr, bufCap)
	})
	switch {
	case n == statusMiss:
		return "", errors.NotFound("wasi:identity/credentials", "identity", identity)
	case n < 0:
		return "", errors.Internal(errors.PhaseDispatch, "access token for "+identity, nil)
	}
	return string(out), nil
}

// State returns the import-backed state store.
func (c *Client) State() capabilities.StateStore {
	return &c.state
}

type stateClient struct{}

func (stateClient) Get(_ context.Context, key string) ([]byte, bool, error) {
	out, n := buffered(func(bufPtr, bufCap uint32) int64 {
		return hostStateGet(stringPtr(key), uint32(len(key)), bufPtr, bufCap)
	})
	switch {
	case n == statusMiss:
		return nil, false, nil
	case n < 0:
		return nil, false, errors.CacheFailed("state get "+key, nil)
	}
	return out, true, nil
}

func (stateClient) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var ttlBuf [8]byte
	binary.LittleEndian.PutUint64(ttlBuf[:], uint64(ttl/time.Second))
	n := hostStateSet(
		stringPtr(key), uint32(len(key)),
		bytesPtr(value), uint32(len(value)),
		bytesPtr(ttlBuf[:]),
	)
	if n < 0 {
		return errors.CacheFailed("state set "+key, nil)
	}
	return nil
}

func (stateClient) Delete(_ context.Context, key string) error {
	if n := hostStateDelete(stringPtr(key), uint32(len(key))); n < 0 {
		return errors.CacheFailed("state delete "+key, nil)
	}
	return nil
}
