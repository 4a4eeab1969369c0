// Package http implements the HTTP capability: an inbound server that
// turns each request into one guest event, and an outbound proxy with a
// stable transport error contract.
package http

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/base64"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/augentic/yetti/env"
	"github.com/augentic/yetti/errors"
)

// ClientCertHeader carries a per-request base64 PEM client identity. It
// is consumed by the proxy and never forwarded upstream.
const ClientCertHeader = "Client-Cert"

// forbiddenHeaders are hop-by-hop and connection-scoped headers stripped
// from every outbound response before it reaches the guest.
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

// ProxyOptions configures the outbound proxy.
type ProxyOptions struct {
	// ClientCert is a base64-encoded PEM bundle (certificate + key)
	// presented as the TLS client identity when no per-request header
	// overrides it.
	ClientCert string `env:"CLIENT_CERT"`

	Timeout time.Duration `env:"HTTP_TIMEOUT" default:"30s"`
}

// Proxy sends outbound requests on behalf of guests. Safe for concurrent
// use; clients are cached per TLS identity.
type Proxy struct {
	opts ProxyOptions

	mu      sync.Mutex
	clients map[[32]byte]*http.Client
}

// NewProxy creates a proxy with the given options.
func NewProxy(opts ProxyOptions) *Proxy {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Proxy{
		opts:    opts,
		clients: make(map[[32]byte]*http.Client),
	}
}

// ConnectProxy builds the proxy from the environment.
func ConnectProxy(_ context.Context) (*Proxy, error) {
	var opts ProxyOptions
	if err := env.Bind(&opts); err != nil {
		return nil, err
	}
	return NewProxy(opts), nil
}

// Send performs one outbound request. The request's Client-Cert header,
// when present, selects the TLS client identity for this call; otherwise
// the configured CLIENT_CERT applies. Forbidden headers are stripped
// from the response, and transport failures carry a stable ErrorCode.
func (p *Proxy) Send(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.URL == nil || req.URL.Scheme == "" || req.URL.Host == "" {
		return nil, errors.Transport(errors.CodeURIInvalid, nil)
	}

	cert := p.opts.ClientCert
	if override := req.Header.Get(ClientCertHeader); override != "" {
		cert = override
		req = req.Clone(ctx)
		req.Header.Del(ClientCertHeader)
	}

	client, err := p.client(cert)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}

	for _, h := range forbiddenHeaders {
		resp.Header.Del(h)
	}
	return resp, nil
}

// Fetch implements capabilities.HttpRequest.
func (p *Proxy) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	return p.Send(ctx, req)
}

// client returns the cached client for a TLS identity, building it on
// first use. The empty identity shares one plain client.
func (p *Proxy) client(cert string) (*http.Client, error) {
	key := sha256.Sum256([]byte(cert))

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c, nil
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cert != "" {
		pemBytes, err := base64.StdEncoding.DecodeString(cert)
		if err != nil {
			return nil, errors.TransportInternal("decode client certificate", err)
		}
		pair, err := tls.X509KeyPair(pemBytes, pemBytes)
		if err != nil {
			return nil, errors.TransportInternal("load client certificate", err)
		}
		transport.TLSClientConfig = &tls.Config{
			Certificates: []tls.Certificate{pair},
		}
	}

	c := &http.Client{
		Transport: transport,
		Timeout:   p.opts.Timeout,
	}
	p.clients[key] = c
	return c, nil
}

// classify maps a client error onto the transport ErrorCode contract.
func classify(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Transport(errors.CodeConnectionTimeout, err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.Transport(errors.CodeConnectionTimeout, err)
	}
	if stderrors.Is(err, syscall.ECONNREFUSED) {
		return errors.Transport(errors.CodeConnectionRefused, err)
	}
	Logger().Debug("unclassified transport failure", zap.Error(err))
	return errors.TransportInternal(err.Error(), err)
}
