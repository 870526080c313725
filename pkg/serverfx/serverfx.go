package serverfx

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"time"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/steeze-cms/pkg/cms"
	"github.com/joeydtaylor/steeze-cms/pkg/core"
	"github.com/joeydtaylor/steeze-cms/pkg/electrician"
	"github.com/joeydtaylor/steeze-cms/pkg/manifest"
	"github.com/joeydtaylor/steeze-cms/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-cms/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-cms/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-cms/pkg/transport/httpx"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Options allow per-deployment env keys/defaults without code duplication.
type Options struct {
	Service         string // log tag only
	ManifestEnv     string // e.g. "CMS_MANIFEST"
	DefaultManifest string // e.g. "manifest.toml"
	ListenAddrEnv   string // e.g. "SERVER_LISTEN_ADDRESS"
	DefaultListen   string // e.g. ":4000"
	TLSCertEnv      string // e.g. "SSL_SERVER_CERTIFICATE"
	TLSKeyEnv       string // e.g. "SSL_SERVER_KEY"

	// Handlers are registered next to the built-ins when the runtime starts.
	Handlers []core.Handler
}

func DefaultOptions() Options {
	return Options{
		Service:         "steeze-cms",
		ManifestEnv:     "CMS_MANIFEST",
		DefaultManifest: "manifest.toml",
		ListenAddrEnv:   "SERVER_LISTEN_ADDRESS",
		DefaultListen:   ":4000",
		TLSCertEnv:      "SSL_SERVER_CERTIFICATE",
		TLSKeyEnv:       "SSL_SERVER_KEY",
	}
}

// ---- Manifest ----

func provideManifest(o Options) (manifest.Config, error) {
	return manifest.Load(envOr(o.ManifestEnv, o.DefaultManifest))
}

// ---- Electrician export events ----

type relayDeps struct {
	fx.In
	LC  fx.Lifecycle
	Log *zap.Logger
}

// provideExportEvents starts the relay for the life of the app. A relay that
// cannot be built is logged and replaced by a noop publisher; exports still
// succeed without their events.
func provideExportEvents(d relayDeps) cms.EventPublisher {
	ctx, cancel := context.WithCancel(context.Background())
	d.LC.Append(fx.Hook{OnStop: func(context.Context) error { cancel(); return nil }})

	rc, err := electrician.NewBuilderRelayFromEnv(ctx)
	if err != nil {
		d.Log.Error("export relay unavailable",
			zap.String("ELECTRICIAN_TARGET", os.Getenv("ELECTRICIAN_TARGET")),
			zap.String("OAUTH_ISSUER_BASE", os.Getenv("OAUTH_ISSUER_BASE")),
			zap.Error(err),
		)
		return electrician.NewExportPublisher(nil, "")
	}
	return electrician.NewExportPublisher(rc, "")
}

// ---- Content runtime ----

type runtimeDeps struct {
	fx.In
	Opts     Options
	Cfg      manifest.Config
	Auth     *auth.Middleware
	Registry *core.Registry
	Events   cms.EventPublisher
	Log      *zap.Logger
}

func provideRuntime(d runtimeDeps) (*core.Runtime, error) {
	cfg := d.Cfg
	vfs := cms.NewDiskVFS(cfg.Content.Root, cfg.Permissions, cfg.Auth.AdminRole)
	store := cms.NewDiskExportStore(cfg.Export.Dir)
	contexts := cms.NewContexts(cfg, d.Auth)

	return core.New(core.Options{
		HandlerPrefix: cfg.Runtime.HandlerPrefix,
		ExportUser:    cfg.Runtime.ExportUser,
		Registry:      d.Registry,
		Contexts:      contexts,
		Exports:       cms.NewExporter(vfs, store, cfg.Export.Prefix, cfg.Export.Suffixes, d.Events, d.Log),
		Resources:     cms.NewServer(vfs, store, cfg.Export.Prefix, contexts, d.Registry, d.Log),
		Logger:        d.Log,
		Handlers:      d.Opts.Handlers,
	})
}

// ---- Router ----

type routerDeps struct {
	fx.In

	AuthMW *auth.Middleware
	LogMW  *logger.Middleware

	Metrics http.Handler `name:"metrics"`

	Cfg     manifest.Config
	Runtime *core.Runtime
	R       httpx.Router
}

func provideRouter(d routerDeps) http.Handler {
	reg := d.Runtime.Registry()
	metrics.SetPathNormalizer(metrics.DispatchPaths(
		d.Runtime.HandlerPrefix(),
		func(name string) bool { _, ok := reg.Lookup(name); return ok },
		d.Cfg.Export.Prefix,
	))

	r := d.R
	r.Use(
		chimd.RequestID,
		chimd.Recoverer,
		chimd.Heartbeat("/ping"),
		d.AuthMW.Middleware(),
		d.LogMW.Middleware(d.AuthMW),
		metrics.Collect(d.AuthMW),
	)
	r.Get("/metrics", d.Metrics)
	r.Fallback(core.NewDispatcher(d.Runtime))
	return r.Mux()
}

// ---- Server lifecycle ----

type serverDeps struct {
	fx.In
	Opts    Options
	Logger  *zap.Logger
	Runtime *core.Runtime
	App     http.Handler `name:"app"`
}

// registerHooks brings the runtime up before the listener opens, so a failed
// Init aborts startup instead of serving 503s.
func registerHooks(lc fx.Lifecycle, d serverDeps) {
	addr := envOr(d.Opts.ListenAddrEnv, d.Opts.DefaultListen)
	cert := os.Getenv(d.Opts.TLSCertEnv)
	key := os.Getenv(d.Opts.TLSKeyEnv)

	srv := &http.Server{
		Addr:         addr,
		Handler:      d.App,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		TLSConfig:    &tls.Config{MinVersion: tls.VersionTLS13, MaxVersion: tls.VersionTLS13},
	}
	useTLS := fileExists(cert) && fileExists(key)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := d.Runtime.Init(ctx); err != nil {
				return err
			}

			if useTLS {
				d.Logger.Info("server starting (TLS)",
					zap.String("service", d.Opts.Service),
					zap.String("addr", addr),
					zap.String("cert", cert),
				)
				go func() {
					if err := srv.ListenAndServeTLS(cert, key); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Fatal("server failed", zap.Error(err))
					}
				}()
			} else {
				d.Logger.Info("server starting (PLAINTEXT)",
					zap.String("service", d.Opts.Service),
					zap.String("addr", addr),
				)
				go func() {
					srv.TLSConfig = nil
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Fatal("server failed", zap.Error(err))
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Logger.Info("server stopping", zap.String("service", d.Opts.Service))
			d.Runtime.Shutdown()
			return srv.Shutdown(ctx)
		},
	})
}

// ---- Public Fx module ----

func Module(opts Options) fx.Option {
	return fx.Options(
		fx.Supply(opts),
		fx.Provide(provideManifest),

		// Middleware modules
		logger.Module,
		auth.Module,
		metrics.Module,

		// Router implementation
		fx.Provide(httpx.NewChi),

		// Content runtime
		fx.Provide(core.NewRegistry),
		fx.Provide(provideExportEvents),
		fx.Provide(provideRuntime),

		// Router (named "app")
		fx.Provide(
			fx.Annotate(
				provideRouter,
				fx.ResultTags(`name:"app"`),
			),
		),

		fx.Invoke(registerHooks),
	)
}

// ---- helpers ----

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
