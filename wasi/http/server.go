package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/augentic/yetti/env"
	"github.com/augentic/yetti/errors"
	"github.com/augentic/yetti/host"
)

// ServerOptions configures the inbound HTTP server.
type ServerOptions struct {
	Addr string `env:"HTTP_ADDR" default:"http://localhost:8080"`
}

// ServerOptionsFromEnv populates ServerOptions from the process
// environment.
func ServerOptionsFromEnv() (ServerOptions, error) {
	var opts ServerOptions
	err := env.Bind(&opts)
	return opts, err
}

// listenAddr reduces the configured address to host:port. The scheme is
// accepted for parity with URL-shaped configuration.
func listenAddr(addr string) (string, error) {
	if !strings.Contains(addr, "://") {
		return addr, nil
	}
	u, err := url.Parse(addr)
	if err != nil || u.Host == "" {
		return "", errors.Internal(errors.PhaseStartup, "listen address "+addr, err)
	}
	return u.Host, nil
}

// Run serves inbound HTTP until ctx is cancelled. Every request becomes
// one guest event through the request entry point.
func (h *HTTP) Run(ctx context.Context, s *host.State) error {
	addr, err := listenAddr(h.opts.Addr)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Internal(errors.PhaseStartup, "listen "+addr, err)
	}

	srv := &http.Server{
		Handler:           http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { h.serve(w, r, s) }),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	Logger().Info("http server listening", zap.String("addr", ln.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-done:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// serve turns one request into one guest event and writes the reply.
func (h *HTTP) serve(w http.ResponseWriter, r *http.Request, s *host.State) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"error":"read request body"}`, http.StatusBadRequest)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}
	envelope, err := json.Marshal(RequestEnvelope{
		Method:  r.Method,
		URI:     r.URL.RequestURI(),
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		http.Error(w, `{"error":"encode request"}`, http.StatusInternalServerError)
		return
	}

	reply, err := host.Dispatch(r.Context(), s, EntryPoint, envelope)
	if err != nil {
		writeDispatchError(w, err)
		return
	}

	var resp ResponseEnvelope
	if err := json.Unmarshal(reply, &resp); err != nil {
		Logger().Warn("malformed guest reply", zap.Error(err))
		http.Error(w, `{"error":"malformed guest reply"}`, http.StatusBadGateway)
		return
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	w.Write(resp.Body)
}

// writeDispatchError maps dispatcher failures onto HTTP statuses:
// route miss 404, decode 400, everything else 500.
func writeDispatchError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var e *errors.Error
	if stderrors.As(err, &e) {
		switch e.Kind {
		case errors.KindRouteMiss:
			status = http.StatusNotFound
		case errors.KindDecode:
			status = http.StatusBadRequest
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
