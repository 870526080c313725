// pkg/electrician/relay.go
package electrician

// Publish-only relay built with Electrician builder primitives. Internals are
// hidden: no builder.* types are stored on the struct.

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joeydtaylor/electrician/pkg/builder"
)

// RelayRequest is the byte-level publish envelope.
type RelayRequest struct {
	Topic   string
	Body    []byte
	Headers map[string]string
}

// RelayClient publishes bytes to a downstream relay.
type RelayClient interface {
	Publish(ctx context.Context, rr RelayRequest) error
}

// noopRelay accepts publishes and discards them.
type noopRelay struct{}

func (noopRelay) Publish(context.Context, RelayRequest) error { return nil }

type builderClient struct {
	submit func(context.Context, []byte) error // captures wire.Submit
}

// relayEnv is the environment-driven relay configuration.
//
//	ELECTRICIAN_TARGET          = "host:port[,host2:port2]"   (required; noop when unset)
//	ELECTRICIAN_TLS_ENABLE      = "true" | "false"
//	ELECTRICIAN_TLS_CLIENT_CRT  = path (default: keys/tls/client.crt)
//	ELECTRICIAN_TLS_CLIENT_KEY  = path (default: keys/tls/client.key)
//	ELECTRICIAN_TLS_CA          = path (default: keys/tls/ca.crt)
//	ELECTRICIAN_TLS_INSECURE    = "true" | "false"  (dev only; OAuth HTTP client)
//	ELECTRICIAN_COMPRESS        = "snappy" | ""
//	ELECTRICIAN_ENCRYPT         = "aesgcm" | ""
//	ELECTRICIAN_AES256_KEY_HEX  = 64 hex chars (32 bytes)
//	ELECTRICIAN_STATIC_HEADERS  = "k=v,k2=v2"
//	OAUTH_ISSUER_BASE, OAUTH_JWKS_URL, OAUTH_CLIENT_ID, OAUTH_CLIENT_SECRET,
//	OAUTH_SCOPES, OAUTH_REFRESH_LEEWAY (client credentials; all of issuer/id/secret to enable)
type relayEnv struct {
	targets       []string
	useTLS        bool
	tlsCrt        string
	tlsKey        string
	tlsCA         string
	tlsInsecure   bool
	useSnappy     bool
	useAESGCM     bool
	aesKey        string
	staticHeaders map[string]string

	oauthIssuer   string
	oauthJWKS     string
	oauthClientID string
	oauthSecret   string
	oauthScopes   []string
	oauthLeeway   time.Duration
}

func (e relayEnv) oauthEnabled() bool {
	return e.oauthIssuer != "" && e.oauthClientID != "" && e.oauthSecret != ""
}

func loadRelayEnv() (*relayEnv, error) {
	raw := strings.TrimSpace(os.Getenv("ELECTRICIAN_TARGET"))
	if raw == "" {
		return nil, nil
	}
	e := &relayEnv{
		targets:       splitCSV(raw),
		useTLS:        strings.EqualFold(os.Getenv("ELECTRICIAN_TLS_ENABLE"), "true"),
		tlsCrt:        envOr("ELECTRICIAN_TLS_CLIENT_CRT", "keys/tls/client.crt"),
		tlsKey:        envOr("ELECTRICIAN_TLS_CLIENT_KEY", "keys/tls/client.key"),
		tlsCA:         envOr("ELECTRICIAN_TLS_CA", "keys/tls/ca.crt"),
		tlsInsecure:   strings.EqualFold(os.Getenv("ELECTRICIAN_TLS_INSECURE"), "true"),
		useSnappy:     strings.EqualFold(os.Getenv("ELECTRICIAN_COMPRESS"), "snappy"),
		useAESGCM:     strings.EqualFold(os.Getenv("ELECTRICIAN_ENCRYPT"), "aesgcm"),
		staticHeaders: parseKV(os.Getenv("ELECTRICIAN_STATIC_HEADERS")),
		oauthIssuer:   strings.TrimSpace(os.Getenv("OAUTH_ISSUER_BASE")),
		oauthJWKS:     strings.TrimSpace(os.Getenv("OAUTH_JWKS_URL")),
		oauthClientID: strings.TrimSpace(os.Getenv("OAUTH_CLIENT_ID")),
		oauthSecret:   strings.TrimSpace(os.Getenv("OAUTH_CLIENT_SECRET")),
		oauthScopes:   splitCSV(os.Getenv("OAUTH_SCOPES")),
		oauthLeeway:   parseDur(envOr("OAUTH_REFRESH_LEEWAY", "20s")),
	}
	if e.useAESGCM {
		rawKey, err := hex.DecodeString(strings.TrimSpace(os.Getenv("ELECTRICIAN_AES256_KEY_HEX")))
		if err != nil || len(rawKey) != 32 {
			return nil, fmt.Errorf("ELECTRICIAN_AES256_KEY_HEX must be 64 hex chars (32 bytes): %w", err)
		}
		e.aesKey = string(rawKey)
	}
	return e, nil
}

// NewBuilderRelayFromEnv returns a publish RelayClient powered by
// Electrician's ForwardRelay[[]byte], or a noop client when
// ELECTRICIAN_TARGET is unset.
func NewBuilderRelayFromEnv(ctx context.Context) (RelayClient, error) {
	env, err := loadRelayEnv()
	if err != nil {
		return nil, err
	}
	if env == nil {
		return noopRelay{}, nil
	}

	logger := builder.NewLogger(builder.LoggerWithDevelopment(true))
	wire := builder.NewWire[[]byte](ctx, builder.WireWithLogger[[]byte](logger))

	perf := builder.NewPerformanceOptions(env.useSnappy, builder.COMPRESS_SNAPPY)
	sec := builder.NewSecurityOptions(env.useAESGCM, builder.ENCRYPTION_AES_GCM)
	tlsCfg := builder.NewTlsClientConfig(
		env.useTLS,
		env.tlsCrt, env.tlsKey, env.tlsCA,
		tls.VersionTLS13, tls.VersionTLS13,
	)

	var relayStart func(context.Context) error
	if env.oauthEnabled() {
		var authOpts = builder.NewForwardRelayAuthenticationOptionsOAuth2(nil)
		if env.oauthJWKS != "" {
			authOpts = builder.NewForwardRelayAuthenticationOptionsOAuth2(
				builder.NewForwardRelayOAuth2JWTOptions(env.oauthIssuer, env.oauthJWKS, []string{}, env.oauthScopes, 300),
			)
		}
		authHTTP := &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion:         tls.VersionTLS13,
					MaxVersion:         tls.VersionTLS13,
					InsecureSkipVerify: env.tlsInsecure, // dev only
				},
			},
		}
		ts := builder.NewForwardRelayRefreshingClientCredentialsSource(
			env.oauthIssuer, env.oauthClientID, env.oauthSecret, env.oauthScopes, env.oauthLeeway, authHTTP,
		)
		relay := builder.NewForwardRelay[[]byte](
			ctx,
			builder.ForwardRelayWithLogger[[]byte](logger),
			builder.ForwardRelayWithTarget[[]byte](env.targets...),
			builder.ForwardRelayWithPerformanceOptions[[]byte](perf),
			builder.ForwardRelayWithSecurityOptions[[]byte](sec, env.aesKey),
			builder.ForwardRelayWithTLSConfig[[]byte](tlsCfg),
			builder.ForwardRelayWithStaticHeaders[[]byte](env.staticHeaders),
			builder.ForwardRelayWithAuthenticationOptions[[]byte](authOpts),
			builder.ForwardRelayWithOAuthBearer[[]byte](ts),
			builder.ForwardRelayWithInput(wire),
		)
		relayStart = relay.Start
	} else {
		relay := builder.NewForwardRelay[[]byte](
			ctx,
			builder.ForwardRelayWithLogger[[]byte](logger),
			builder.ForwardRelayWithTarget[[]byte](env.targets...),
			builder.ForwardRelayWithPerformanceOptions[[]byte](perf),
			builder.ForwardRelayWithSecurityOptions[[]byte](sec, env.aesKey),
			builder.ForwardRelayWithTLSConfig[[]byte](tlsCfg),
			builder.ForwardRelayWithStaticHeaders[[]byte](env.staticHeaders),
			builder.ForwardRelayWithInput(wire),
		)
		relayStart = relay.Start
	}

	if err := wire.Start(ctx); err != nil {
		return nil, fmt.Errorf("builder wire start: %w", err)
	}
	if err := relayStart(ctx); err != nil {
		return nil, fmt.Errorf("builder relay start: %w", err)
	}
	return &builderClient{
		submit: func(ctx context.Context, b []byte) error { return wire.Submit(ctx, b) },
	}, nil
}

// Publish sends bytes into the pipeline. Topic/headers ride the relay path.
func (c *builderClient) Publish(ctx context.Context, rr RelayRequest) error {
	if rr.Topic == "" {
		return fmt.Errorf("relay: missing topic")
	}
	return c.submit(ctx, rr.Body)
}
