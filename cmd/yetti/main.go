package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/augentic/yetti/env"
	"github.com/augentic/yetti/guest"
	"github.com/augentic/yetti/host"
	"github.com/augentic/yetti/httpcache"
	"github.com/augentic/yetti/link"
	"github.com/augentic/yetti/runtime"
	"github.com/augentic/yetti/wasi/blobstore"
	wasihttp "github.com/augentic/yetti/wasi/http"
	"github.com/augentic/yetti/wasi/identity"
	"github.com/augentic/yetti/wasi/keyvalue"
	"github.com/augentic/yetti/wasi/messaging"
	"github.com/augentic/yetti/wasi/sql"
	"github.com/augentic/yetti/wasi/vault"
	"github.com/augentic/yetti/wasi/websockets"
)

func main() {
	var (
		configFile  = flag.String("config", "runtime.yaml", "Path to runtime manifest")
		wasmFile    = flag.String("component", "", "Path to component wasm file (overrides manifest)")
		envFile     = flag.String("env", ".env", "Path to .env file")
		dev         = flag.Bool("dev", false, "Development logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	logger, err := buildLogger(*dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	installLogger(logger)

	cfg, err := configure(*configFile, *wasmFile, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: -i requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	os.Exit(runtime.Main(cfg))
}

func configure(configFile, wasmFile, envFile string) (runtime.Config, error) {
	if err := env.Load(envFile); err != nil {
		return runtime.Config{}, err
	}

	manifest, err := runtime.LoadConfig(configFile)
	if err != nil {
		return runtime.Config{}, err
	}
	if wasmFile == "" {
		wasmFile = manifest.Component
	}
	if wasmFile == "" {
		return runtime.Config{}, fmt.Errorf("no component: set -component or the manifest's component field")
	}

	component, err := link.LoadComponent(wasmFile)
	if err != nil {
		return runtime.Config{}, err
	}
	bindings, err := runtime.Bindings(manifest)
	if err != nil {
		return runtime.Config{}, err
	}

	return runtime.Config{
		Main:      true,
		Component: component,
		Hosts:     bindings,
	}, nil
}

func buildLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// installLogger hands the process logger to every package that logs.
func installLogger(l *zap.Logger) {
	runtime.SetLogger(l)
	host.SetLogger(l)
	link.SetLogger(l)
	guest.SetLogger(l)
	httpcache.SetLogger(l)
	blobstore.SetLogger(l)
	wasihttp.SetLogger(l)
	identity.SetLogger(l)
	keyvalue.SetLogger(l)
	messaging.SetLogger(l)
	sql.SetLogger(l)
	vault.SetLogger(l)
	websockets.SetLogger(l)
}
