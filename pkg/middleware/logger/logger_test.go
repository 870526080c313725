package logger_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/joeydtaylor/steeze-cms/pkg/manifest"
	"github.com/joeydtaylor/steeze-cms/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-cms/pkg/middleware/logger"
)

func TestAccessLogRecordsPrincipalAndStatus(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	a := auth.New(manifest.Auth{DevBypass: true}, nil)
	lm := logger.NewMiddleware(zap.New(core))

	h := a.Middleware()(lm.Middleware(a)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})))

	r := httptest.NewRequest(http.MethodPost, "/missing.html", nil)
	r.Header.Set("X-Dev-User", "alice")
	r.Header.Set("X-Dev-Role", "editor")
	h.ServeHTTP(httptest.NewRecorder(), r)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	require.Equal(t, "alice", fields["username"])
	require.Equal(t, "editor", fields["role"])
	require.Equal(t, true, fields["isAuthenticated"])
	require.Equal(t, "/missing.html", fields["uri"])
	require.Equal(t, http.MethodPost, fields["httpMethod"])
	require.EqualValues(t, http.StatusNotFound, fields["status"])
}

func TestNewLogInWritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := logger.NewLogIn(dir, "system.log", zap.InfoLevel)
	l.Info("hello", zap.String("k", "v"))
	_ = l.Sync()

	b, err := os.ReadFile(filepath.Join(dir, "system.log"))
	require.NoError(t, err)
	require.Contains(t, string(b), `"k":"v"`)
}
