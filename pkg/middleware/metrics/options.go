package metrics

import (
	"net/http"
	"strings"
	"sync"
)

var (
	skipMu    sync.RWMutex
	skipPaths = map[string]struct{}{"/metrics": {}, "/ping": {}}

	normMu         sync.RWMutex
	pathNormalizer = func(r *http.Request) string { return r.URL.Path }
)

// AddMetricsSkipPaths extends the skip list (default "/metrics" and "/ping").
func AddMetricsSkipPaths(paths ...string) {
	skipMu.Lock()
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p != "" {
			skipPaths[p] = struct{}{}
		}
	}
	skipMu.Unlock()
}

// SetPathNormalizer replaces the function producing the uri label.
func SetPathNormalizer(fn func(*http.Request) string) {
	if fn == nil {
		return
	}
	normMu.Lock()
	pathNormalizer = fn
	normMu.Unlock()
}

// DispatchPaths returns a normalizer with a bounded label set. Paths under
// handlerPrefix keep their full form only when known reports the handler
// name as registered; other handler paths fold to handlerPrefix+"/unknown".
// Paths under one of keep fold to that prefix and everything else to "/".
func DispatchPaths(handlerPrefix string, known func(name string) bool, keep ...string) func(*http.Request) string {
	unknown := handlerPrefix + "/unknown"
	return func(r *http.Request) string {
		p := r.URL.Path
		if rest, ok := strings.CutPrefix(p, handlerPrefix); ok {
			if known != nil && known(strings.TrimPrefix(rest, "/")) {
				return p
			}
			return unknown
		}
		for _, pre := range keep {
			if p == pre || strings.HasPrefix(p, strings.TrimSuffix(pre, "/")+"/") {
				return pre
			}
		}
		return "/"
	}
}

func isSkipPath(r *http.Request) bool {
	p := r.URL.Path
	skipMu.RLock()
	_, ok := skipPaths[p]
	skipMu.RUnlock()
	return ok
}

func normalizePath(r *http.Request) string {
	normMu.RLock()
	fn := pathNormalizer
	normMu.RUnlock()
	return fn(r)
}
