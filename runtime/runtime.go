// Package runtime assembles a configured set of capability hosts and a
// component into a running program: connect backends, link, pre-
// instantiate, then supervise the server hosts.
package runtime

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/augentic/yetti/errors"
	"github.com/augentic/yetti/host"
	"github.com/augentic/yetti/link"
)

// filler is the optional host role that contributes a store-context
// slot. Every capability host with per-request data implements it.
type filler interface {
	Fill() host.Filler
}

// Assemble connects every binding's backend concurrently, links the
// hosts in declaration order, and pre-instantiates the component.
//
// The first backend failure aborts assembly; link failures are
// aggregated so a misconfigured runtime reports every broken capability
// at once.
func Assemble(ctx context.Context, cfg Config) (*host.State, error) {
	if cfg.Component == nil {
		return nil, errors.Internal(errors.PhaseStartup, "no component configured", nil)
	}

	hosts := make([]host.Host, len(cfg.Hosts))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range cfg.Hosts {
		g.Go(func() error {
			h, err := b.Connect(gctx)
			if err != nil {
				return err
			}
			hosts[i] = h
			Logger().Debug("backend connected", zap.String("capability", h.Name()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	state := host.NewState()
	linker := link.New(wazero.NewRuntime(ctx))

	var linkErrs []error
	for _, h := range hosts {
		if err := h.Link(linker, dataFor(h)); err != nil {
			linkErrs = append(linkErrs, errors.LinkFailed(h.Name(), err))
			continue
		}
		state.AddBackend(h.Name(), h)
		if f, ok := h.(filler); ok {
			state.AddFiller(f.Fill())
		}
	}
	if len(linkErrs) > 0 {
		return nil, joinErrors(linkErrs)
	}

	pre, err := linker.Instantiate(ctx, cfg.Component)
	if err != nil {
		return nil, err
	}
	state.SetPre(pre)
	state.Seal()

	Logger().Info("runtime assembled",
		zap.String("component", cfg.Component.Name),
		zap.Strings("capabilities", state.Capabilities()))
	return state, nil
}

// dataFor builds the DataFunc handed to a host's Link. Hosts with a
// store-context slot expose it through Data(); hosts without per-request
// data get a nil-returning func.
func dataFor(h host.Host) host.DataFunc {
	type dataProvider interface {
		Data() host.DataFunc
	}
	if p, ok := h.(dataProvider); ok {
		return p.Data()
	}
	return func(*host.StoreContext) any { return nil }
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	detail := ""
	for i, e := range errs {
		if i > 0 {
			detail += "; "
		}
		detail += e.Error()
	}
	return errors.Internal(errors.PhaseLink, detail, nil)
}

// Run starts every Server host and blocks until they stop or ctx is
// cancelled. In a Main configuration the first server exit brings the
// rest down; otherwise only a failing server does. The first non-cancel
// error is returned.
func Run(ctx context.Context, state *host.State, cfg Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	servers := 0
	for _, name := range state.Capabilities() {
		b, ok := state.Backend(name)
		if !ok {
			continue
		}
		srv, ok := b.(host.Server)
		if !ok {
			continue
		}
		servers++
		g.Go(func() error {
			Logger().Info("server host starting", zap.String("capability", srv.Name()))
			err := srv.Run(gctx, state)
			if cfg.Main || err != nil {
				cancel()
			}
			if err != nil && !errors.IsCancel(err) {
				return err
			}
			return nil
		})
	}
	if servers == 0 {
		return errors.Internal(errors.PhaseStartup, "no server hosts configured", nil)
	}

	err := g.Wait()
	if closeErr := state.Close(context.Background()); closeErr != nil {
		Logger().Warn("state close", zap.Error(closeErr))
	}
	return err
}

// Main is the program entry: assemble, run until a signal or the first
// server exit, return the exit code.
func Main(cfg Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := Assemble(ctx, cfg)
	if err != nil {
		Logger().Error("assembly failed", zap.Error(err))
		return 1
	}

	if err := Run(ctx, state, cfg); err != nil {
		Logger().Error("runtime stopped", zap.Error(err))
		return 1
	}
	return 0
}
