// Package yetti is a host runtime and guest SDK for sandboxed
// WebAssembly components.
//
// The host side links a set of capability hosts to a component, then
// dispatches inbound events into pre-instantiated guests, one isolated
// instance per event. The guest side turns a declarative Spec of routes
// and topics into the component's event handlers.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	yetti/
//	├── runtime/         Assembly and supervision: connect, link, run
//	├── link/            Shared linker, component loading, store contexts
//	├── host/            Host roles, runtime state, event dispatch
//	├── wasi/            Capability host implementations
//	│   ├── abi/         Buffer-style host ABI and guest call convention
//	│   ├── config/      wasi:config/store
//	│   ├── keyvalue/    wasi:keyvalue/store
//	│   ├── http/        wasi:http inbound server and outbound proxy
//	│   ├── messaging/   wasi:messaging producer and topic delivery
//	│   ├── identity/    wasi:identity signed access tokens
//	│   ├── vault/       wasi:vault secret references
//	│   ├── blobstore/   wasi:blobstore named byte containers
//	│   ├── sql/         wasi:sql query and exec
//	│   ├── otel/        wasi:otel span events
//	│   └── websockets/  wasi:websockets broadcast hub
//	├── guest/           Guest SDK: Spec, typed routes, topic dispatch
//	├── httpcache/       Fingerprinted outbound response cache
//	├── capabilities/    Provider interfaces shared by host and guest
//	├── resource/        Generic handle tables
//	├── env/             Environment binding for backend options
//	└── errors/          Structured error types
//
// # Quick Start
//
// Host side, assemble and run a component:
//
//	component, err := link.LoadComponent("app.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.Exit(runtime.Main(runtime.Config{
//	    Main:      true,
//	    Component: component,
//	    Hosts: []runtime.Binding{
//	        {Name: "config", Connect: connectConfig},
//	        {Name: "http", Connect: connectHTTP},
//	    },
//	}))
//
// Guest side, declare the component's surface:
//
//	g, err := guest.New(guest.Spec{
//	    Owner:    "detector",
//	    Provider: newProvider,
//	    HTTP: []guest.Route{
//	        guest.GET[JobRequest]("/jobs/detector", guest.WithQuery),
//	    },
//	    Messaging: []guest.Topic{
//	        guest.On[RealtimeMsg]("realtime"),
//	    },
//	})
//
// # Dispatch Model
//
// Every inbound event gets a fresh store context and a fresh guest
// instance from the shared pre-instantiation. Capability state lives in
// the store context, so nothing leaks between events. Instances are NOT
// reused; isolation comes before throughput.
//
// # Capability Hosts
//
// A capability host owns one backend connection and one group of host
// functions. Backends connect concurrently at assembly; host functions
// link in declaration order against a single linker. Server hosts
// (http, messaging, websockets) additionally pump inbound events into
// the guest.
package yetti
