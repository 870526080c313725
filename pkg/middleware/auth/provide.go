package auth

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joeydtaylor/steeze-cms/pkg/manifest"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// New builds the middleware from the manifest's [auth] section.
func New(cfg manifest.Auth, hc HTTPDoer) *Middleware {
	if hc == nil {
		hc = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
			Timeout: 8 * time.Second,
		}
	}
	cookie := strings.TrimSpace(cfg.AssertionCookie)
	if cookie == "" {
		cookie = "assert"
	}
	return &Middleware{
		httpClient:       hc,
		sessionAPI:       strings.TrimSpace(cfg.SessionAPI),
		cookieName:       strings.TrimSpace(cfg.SessionCookie),
		adminRole:        cfg.AdminRole,
		devBypass:        cfg.DevBypass || os.Getenv("AUTH_DEV_BYPASS") == "true",
		assertCookieName: cookie,
		assertKeyURL:     strings.TrimSpace(cfg.AssertionKeyURL),
		assertKeyFile:    strings.TrimSpace(cfg.AssertionKeyFile),
		assertKeyKID:     strings.TrimSpace(cfg.AssertionKeyKID),
		assertIssuer:     strings.TrimSpace(cfg.Issuer),
		assertAudience:   strings.TrimSpace(cfg.Audience),
		assertLeeway:     time.Duration(cfg.LeewaySeconds) * time.Second,
		cacheTTL:         1 * time.Hour, // overridable by Cache-Control
	}
}

// ProvideAuthentication wires the middleware and loads the assertion key.
// A key that cannot be loaded at startup is logged, not fatal: requests then
// fall through to the session API or stay anonymous.
func ProvideAuthentication(lc fx.Lifecycle, cfg manifest.Config, log *zap.Logger) *Middleware {
	m := New(cfg.Auth, nil)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := m.LoadKey(ctx); err != nil {
				log.Warn("assertion key not loaded", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			m.Close()
			return nil
		},
	})
	return m
}

// LoadKey reads the assertion key from file or URL. A URL source is then
// refreshed in the background until Close.
func (m *Middleware) LoadKey(ctx context.Context) error {
	switch {
	case m.assertKeyFile != "":
		return m.loadAssertionKeyFile(m.assertKeyFile)
	case m.assertKeyURL != "":
		if err := m.refreshAssertionKey(ctx); err != nil {
			return err
		}
		rctx, cancel := context.WithCancel(context.Background())
		m.stop = cancel
		go m.backgroundRefresh(rctx)
		return nil
	default:
		return nil
	}
}

var Module = fx.Options(
	fx.Provide(ProvideAuthentication),
)
