package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

func (m *Middleware) backgroundRefresh(ctx context.Context) {
	for {
		sleep := m.getCacheTTL()
		if sleep < 5*time.Second {
			sleep = 5 * time.Second
		}
		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		_ = m.refreshAssertionKey(ctx)
	}
}

func (m *Middleware) loadAssertionKeyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	pub, err := parsePEMKey(b)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	m.mu.Lock()
	m.assertKey = pub
	m.lastFetch = time.Now()
	m.mu.Unlock()
	return nil
}

func (m *Middleware) refreshAssertionKey(ctx context.Context) error {
	if m.assertKeyURL == "" {
		return errors.New("auth.assertion_key_url not set")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.assertKeyURL, nil)
	if err != nil {
		return err
	}
	if etag := m.getETag(); etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	req.Header.Set("Accept", "*/*")

	res, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	// Honor 304 with previous key
	if res.StatusCode == http.StatusNotModified && m.getKey() != nil {
		m.mu.Lock()
		m.updateCacheTTLLocked(res)
		m.lastFetch = time.Now()
		m.mu.Unlock()
		return nil
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("key fetch %s: %s", m.assertKeyURL, res.Status)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	var pub *rsa.PublicKey
	ct := strings.ToLower(strings.TrimSpace(res.Header.Get("Content-Type")))
	if strings.Contains(ct, "application/json") || strings.HasSuffix(strings.ToLower(m.assertKeyURL), ".json") {
		pub, err = parseJWKS(body, m.assertKeyKID)
	} else {
		pub, err = parsePEMKey(body)
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.assertKey = pub
	m.assertETag = res.Header.Get("ETag")
	m.updateCacheTTLLocked(res)
	m.lastFetch = time.Now()
	m.mu.Unlock()
	return nil
}

type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// parseJWKS picks the key with kid, or the first RSA signing key when kid is
// empty.
func parseJWKS(b []byte, kid string) (*rsa.PublicKey, error) {
	var set struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.Unmarshal(b, &set); err != nil {
		return nil, err
	}

	var sel *jwk
	for i := range set.Keys {
		k := &set.Keys[i]
		if k.Kty != "RSA" {
			continue
		}
		if kid != "" {
			if k.Kid == kid {
				sel = k
				break
			}
			continue
		}
		if (k.Use == "" || k.Use == "sig") && (k.Alg == "" || strings.EqualFold(k.Alg, "RS256")) {
			sel = k
			break
		}
	}
	if sel == nil {
		return nil, errors.New("no suitable RSA key in JWKS")
	}
	n, err := b64url(sel.N)
	if err != nil {
		return nil, fmt.Errorf("bad jwks.n: %w", err)
	}
	e, err := b64url(sel.E)
	if err != nil {
		return nil, fmt.Errorf("bad jwks.e: %w", err)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: bytesToInt(e)}, nil
}

func parsePEMKey(b []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("no PEM block")
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rk, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("PEM is not RSA public key")
	}
	return rk, nil
}

// expects m.mu held
func (m *Middleware) updateCacheTTLLocked(res *http.Response) {
	cc := res.Header.Get("Cache-Control")
	if cc == "" {
		return
	}
	for _, p := range strings.Split(cc, ",") {
		p = strings.TrimSpace(strings.ToLower(p))
		if v, ok := strings.CutPrefix(p, "max-age="); ok {
			if s, err := strconv.Atoi(v); err == nil && s >= 5 {
				m.cacheTTL = time.Duration(s) * time.Second
				return
			}
		}
	}
}

func (m *Middleware) getKey() *rsa.PublicKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assertKey
}

func (m *Middleware) getETag() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assertETag
}

func (m *Middleware) getCacheTTL() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cacheTTL
}
