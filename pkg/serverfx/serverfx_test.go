package serverfx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/joeydtaylor/steeze-cms/pkg/core"
	"github.com/joeydtaylor/steeze-cms/pkg/serverfx"
)

const manifestTOML = `
[runtime]
export_user = "Export"

[content]
root = "%CONTENT%"

[export]
dir = "%EXPORT%"
suffixes = ["html"]

[[user]]
name = "Export"
role = "export"
`

// setup writes a manifest and a one-page site, and points the process env at
// them.
func setup(t *testing.T) (exportDir string) {
	t.Helper()
	dir := t.TempDir()
	content := filepath.Join(dir, "content")
	exportDir = filepath.Join(dir, "export")
	require.NoError(t, os.MkdirAll(content, 0o755))
	require.NoError(t, os.MkdirAll(exportDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(content, "page.html"), []byte("<p>page</p>"), 0o644))

	m := filepath.Join(dir, "manifest.toml")
	body := []byte(strings.NewReplacer("%CONTENT%", filepath.ToSlash(content), "%EXPORT%", filepath.ToSlash(exportDir)).Replace(manifestTOML))
	require.NoError(t, os.WriteFile(m, body, 0o644))

	t.Setenv("CMS_MANIFEST", m)
	t.Setenv("LOG_DIR", filepath.Join(dir, "log"))
	t.Setenv("SERVER_LISTEN_ADDRESS", "127.0.0.1:0")
	t.Setenv("ELECTRICIAN_TARGET", "")
	return exportDir
}

func captureApp(dst *http.Handler) fx.Option {
	return fx.Invoke(fx.Annotate(
		func(h http.Handler) { *dst = h },
		fx.ParamTags(`name:"app"`),
	))
}

func TestModuleServesDispatcher(t *testing.T) {
	exportDir := setup(t)

	var h http.Handler
	app := fxtest.New(t, serverfx.Module(serverfx.DefaultOptions()), captureApp(&h))
	app.RequireStart()
	defer app.RequireStop()

	do := func(method, path string) *httptest.ResponseRecorder {
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, httptest.NewRequest(method, path, nil))
		return rw
	}

	rw := do(http.MethodGet, "/page.html")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "<p>page</p>", rw.Body.String())

	require.Equal(t, http.StatusNotFound, do(http.MethodGet, "/some/missing/page.html").Code)
	require.Equal(t, http.StatusInternalServerError, do(http.MethodPost, "/handle/nope").Code)
	require.Equal(t, http.StatusOK, do(http.MethodGet, "/handle/status").Code)
	require.Equal(t, http.StatusOK, do(http.MethodGet, "/ping").Code)

	rw = do(http.MethodGet, "/export/page.html")
	require.Equal(t, http.StatusOK, rw.Code)
	b, err := os.ReadFile(filepath.Join(exportDir, "page.html"))
	require.NoError(t, err)
	require.Equal(t, "<p>page</p>", string(b))

	rw = do(http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Contains(t, rw.Body.String(), "cms_export_total")
	require.Contains(t, rw.Body.String(), `uri="/handle/unknown"`)
	require.Contains(t, rw.Body.String(), `uri="/handle/status"`)
	require.NotContains(t, rw.Body.String(), `uri="/handle/nope"`)
	require.NotContains(t, rw.Body.String(), `uri="/page.html"`)
}

func TestModuleInitFailureAbortsStart(t *testing.T) {
	setup(t)

	opts := serverfx.DefaultOptions()
	opts.Handlers = []core.Handler{core.HandlerFunc(core.StatusHandlerName, func(http.ResponseWriter, *http.Request) {})}

	app := fxtest.New(t, serverfx.Module(opts))
	err := app.Start(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), core.ErrDuplicateHandler.Error())
}

func TestModuleRejectsBadManifest(t *testing.T) {
	setup(t)
	bad := filepath.Join(t.TempDir(), "manifest.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[content]\nroot = \"\"\n"), 0o644))
	t.Setenv("CMS_MANIFEST", bad)

	app := fx.New(serverfx.Module(serverfx.DefaultOptions()), fx.NopLogger)
	require.Error(t, app.Err())
}
