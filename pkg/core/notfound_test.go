package core

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func notFound(t *testing.T, f *fixture, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	h, ok := f.rt.Registry().Lookup(NotFoundHandlerName)
	require.True(t, ok)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(method, path, nil))
	return rw
}

func TestNotFoundWithoutDescriptor(t *testing.T) {
	t.Parallel()

	f := newFixture(t).started(t)
	rw := notFound(t, f, http.MethodGet, "/some/missing/page.html")

	require.Equal(t, http.StatusNotFound, rw.Code)
	require.Zero(t, f.exports.calls.Load())
	require.EqualValues(t, 1, f.rt.notFound.Stats().Unavailable)
}

func TestNotFoundExportSucceeds(t *testing.T) {
	t.Parallel()

	f := newFixture(t).started(t)
	f.exports.data = exportFor
	f.exports.export = func(w http.ResponseWriter, r *http.Request, cms *Context, data *ExportData) error {
		require.Equal(t, "Export", cms.Principal.Name)
		got, ok := FromContext(r.Context())
		require.True(t, ok)
		require.Same(t, cms, got)
		w.Header().Set("Content-Type", data.MimeType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<h1>exported</h1>"))
		return nil
	}

	rw := notFound(t, f, http.MethodGet, "/some/missing/page.html")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "<h1>exported</h1>", rw.Body.String())
	require.Equal(t, "text/html", rw.Header().Get("Content-Type"))
	require.EqualValues(t, 1, f.rt.notFound.Stats().Done)
}

func TestNotFoundRunsAsExportUser(t *testing.T) {
	t.Parallel()

	f := newFixture(t).started(t)
	f.exports.data = func(_ *http.Request, cms *Context) (*ExportData, bool) {
		require.Equal(t, "Export", cms.Principal.Name)
		return nil, false
	}

	r := httptest.NewRequest(http.MethodPost, "/private/page.html", nil)
	r.Header.Set("Authorization", "Bearer caller")
	h, _ := f.rt.Registry().Lookup(NotFoundHandlerName)
	h.ServeHTTP(httptest.NewRecorder(), r)

	require.Equal(t, []string{"Export"}, f.contexts.users)
}

func TestNotFoundContextFailureDegradesTo404(t *testing.T) {
	t.Parallel()

	f := newFixture(t).started(t)
	f.contexts.err = errors.New("user store offline")
	f.exports.data = exportFor

	rw := notFound(t, f, http.MethodGet, "/a.html")
	require.Equal(t, http.StatusNotFound, rw.Code)
	require.Zero(t, f.exports.calls.Load())

	warns := f.logs.FilterLevelExact(zap.WarnLevel).All()
	require.Len(t, warns, 1)
	require.Equal(t, "/a.html", warns[0].ContextMap()["path"])
}

func TestNotFoundExportErrorDegradesTo404(t *testing.T) {
	t.Parallel()

	f := newFixture(t).started(t)
	f.exports.data = exportFor
	f.exports.export = func(http.ResponseWriter, *http.Request, *Context, *ExportData) error {
		return errors.New("disk full")
	}

	rw := notFound(t, f, http.MethodGet, "/b.html")
	require.Equal(t, http.StatusNotFound, rw.Code)
	require.EqualValues(t, 1, f.rt.notFound.Stats().Failed)

	warns := f.logs.FilterMessage("error exporting").All()
	require.Len(t, warns, 1)
	fields := warns[0].ContextMap()
	require.Equal(t, "/b.html -> /b.html", fields["export"])
	require.Contains(t, fields["error"], "disk full")
}

func TestNotFoundExportPanicDegradesTo404(t *testing.T) {
	t.Parallel()

	f := newFixture(t).started(t)
	f.exports.data = exportFor
	f.exports.export = func(http.ResponseWriter, *http.Request, *Context, *ExportData) error {
		var m map[string]int
		m["boom"]++ // nil map write
		return nil
	}

	var rw *httptest.ResponseRecorder
	require.NotPanics(t, func() { rw = notFound(t, f, http.MethodGet, "/c.html") })
	require.Equal(t, http.StatusNotFound, rw.Code)
	require.Contains(t, f.logs.FilterMessage("error exporting").All()[0].ContextMap()["error"], "panic")

	// the lock was released on the panic path
	f.exports.export = func(w http.ResponseWriter, _ *http.Request, _ *Context, _ *ExportData) error {
		_, _ = w.Write([]byte("ok"))
		return nil
	}
	rw = notFound(t, f, http.MethodGet, "/c.html")
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestNotFoundDescriptorPanicDegradesTo404(t *testing.T) {
	t.Parallel()

	f := newFixture(t).started(t)
	f.exports.data = func(*http.Request, *Context) (*ExportData, bool) { panic("bad rule") }

	rw := notFound(t, f, http.MethodGet, "/d.html")
	require.Equal(t, http.StatusNotFound, rw.Code)
}

func TestNotFoundCommittedExportIsNotOverwritten(t *testing.T) {
	t.Parallel()

	f := newFixture(t).started(t)
	f.exports.data = exportFor
	f.exports.export = func(w http.ResponseWriter, _ *http.Request, _ *Context, _ *ExportData) error {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial"))
		return errors.New("connection reset")
	}

	rw := notFound(t, f, http.MethodGet, "/e.html")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "partial", rw.Body.String())
	require.EqualValues(t, 1, f.rt.notFound.Stats().Failed)
}

func TestNotFoundViaDispatcher(t *testing.T) {
	t.Parallel()

	f := newFixture(t).started(t)
	rw := httptest.NewRecorder()
	f.d.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/handle404", nil))
	require.Equal(t, http.StatusNotFound, rw.Code)
	require.Equal(t, []string{"Export"}, f.contexts.users)
}

// Concurrent exports never overlap: each writes its artifact in chunks to a
// shared sink and the sink must hold whole artifacts back to back.
func TestNotFoundExportsAreSerialized(t *testing.T) {
	t.Parallel()

	f := newFixture(t).started(t)
	f.exports.data = exportFor

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		sinkMu  sync.Mutex
		sink    bytes.Buffer
	)
	f.exports.export = func(w http.ResponseWriter, r *http.Request, _ *Context, data *ExportData) error {
		n := inside.Add(1)
		defer inside.Add(-1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		for i := 0; i < 5; i++ {
			sinkMu.Lock()
			fmt.Fprintf(&sink, "%s:%d;", data.RFSName, i)
			sinkMu.Unlock()
			time.Sleep(time.Millisecond)
		}
		_, _ = w.Write([]byte(data.RFSName))
		return nil
	}

	h, ok := f.rt.Registry().Lookup(NotFoundHandlerName)
	require.True(t, ok)

	const n = 8
	var eg errgroup.Group
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("/page-%d.html", i)
		eg.Go(func() error {
			rw := httptest.NewRecorder()
			h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, path, nil))
			if rw.Code != http.StatusOK || rw.Body.String() != path {
				return fmt.Errorf("%s: got %d %q", path, rw.Code, rw.Body.String())
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	require.EqualValues(t, 1, maxSeen.Load())

	parts := strings.Split(strings.TrimSuffix(sink.String(), ";"), ";")
	require.Len(t, parts, n*5)
	for i := 0; i < len(parts); i += 5 {
		name, _, _ := strings.Cut(parts[i], ":")
		for j := 0; j < 5; j++ {
			require.Equal(t, fmt.Sprintf("%s:%d", name, j), parts[i+j])
		}
	}
	require.EqualValues(t, n, f.rt.notFound.Stats().Done)
}
