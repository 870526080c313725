// core/runtime.go
package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/joeydtaylor/steeze-cms/pkg/middleware/metrics"
	"go.uber.org/zap"
)

// Runlevel is the readiness state of a Runtime.
type Runlevel int32

const (
	RunlevelInitializing Runlevel = iota
	RunlevelRunning
	RunlevelShuttingDown
)

func (l Runlevel) String() string {
	switch l {
	case RunlevelInitializing:
		return "initializing"
	case RunlevelRunning:
		return "running"
	case RunlevelShuttingDown:
		return "shutting-down"
	default:
		return fmt.Sprintf("runlevel(%d)", int32(l))
	}
}

// Options wires a Runtime. Contexts, Exports and Resources are required.
type Options struct {
	HandlerPrefix string // default "/handle"
	ExportUser    string // identity used by the not-found handler
	Registry      *Registry
	Contexts      ContextProvider
	Exports       ExportProvider
	Resources     ResourceServer
	Logger        *zap.Logger
	Observer      Observer  // default: prometheus collectors
	Handlers      []Handler // registered by Init after the built-ins
}

// Runtime is the explicit context object the dispatcher and the built-in
// handlers share: registry, collaborators and runlevel.
type Runtime struct {
	prefix     string
	exportUser string
	registry   *Registry
	contexts   ContextProvider
	exports    ExportProvider
	resources  ResourceServer
	log        *zap.Logger
	obs        Observer
	extra      []Handler

	runlevel atomic.Int32
	notFound *NotFoundHandler
}

func New(o Options) (*Runtime, error) {
	if o.Contexts == nil || o.Exports == nil || o.Resources == nil {
		return nil, errors.New("runtime: context, export and resource collaborators are required")
	}
	if o.HandlerPrefix == "" {
		o.HandlerPrefix = "/handle"
	}
	if o.ExportUser == "" {
		return nil, errors.New("runtime: export user is required")
	}
	if o.Registry == nil {
		o.Registry = NewRegistry()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Observer == nil {
		o.Observer = metrics.Dispatch{}
	}
	rt := &Runtime{
		prefix:     o.HandlerPrefix,
		exportUser: o.ExportUser,
		registry:   o.Registry,
		contexts:   o.Contexts,
		exports:    o.Exports,
		resources:  o.Resources,
		log:        o.Logger,
		obs:        o.Observer,
		extra:      o.Handlers,
	}
	rt.notFound = &NotFoundHandler{rt: rt}
	return rt, nil
}

// Init is the startup hook. It registers the built-in handlers, seals the
// registry and upgrades the runlevel. Any error means the process must not
// accept traffic.
func (rt *Runtime) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rt.Runlevel() != RunlevelInitializing {
		return fmt.Errorf("runtime: init called in runlevel %s", rt.Runlevel())
	}
	handlers := append([]Handler{rt.notFound, &StatusHandler{rt: rt}}, rt.extra...)
	for _, h := range handlers {
		if err := rt.registry.Add(h); err != nil {
			return fmt.Errorf("runtime init: %w", err)
		}
	}
	rt.registry.seal()
	rt.runlevel.Store(int32(RunlevelRunning))
	rt.log.Info("runtime ready",
		zap.String("handlerPrefix", rt.prefix),
		zap.Strings("handlers", rt.registry.Names()),
	)
	return nil
}

// Shutdown stops the runtime from accepting new requests.
func (rt *Runtime) Shutdown() {
	rt.runlevel.Store(int32(RunlevelShuttingDown))
	rt.log.Info("runtime shutting down")
}

func (rt *Runtime) Runlevel() Runlevel    { return Runlevel(rt.runlevel.Load()) }
func (rt *Runtime) Registry() *Registry   { return rt.registry }
func (rt *Runtime) HandlerPrefix() string { return rt.prefix }
