package core

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeContexts struct {
	mu    sync.Mutex
	users []string
	err   error
}

func (f *fakeContexts) InitContext(r *http.Request, _ http.ResponseWriter, user string, extra map[string]any) (*Context, error) {
	f.mu.Lock()
	f.users = append(f.users, user)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &Context{Principal: Principal{Name: user}, RequestPath: r.URL.Path, Extra: extra}, nil
}

type fakeExports struct {
	data   func(r *http.Request, cms *Context) (*ExportData, bool)
	export func(w http.ResponseWriter, r *http.Request, cms *Context, data *ExportData) error
	calls  atomic.Int32
}

func (f *fakeExports) ExportData(r *http.Request, cms *Context) (*ExportData, bool) {
	if f.data == nil {
		return nil, false
	}
	return f.data(r, cms)
}

func (f *fakeExports) Export(w http.ResponseWriter, r *http.Request, cms *Context, data *ExportData) error {
	f.calls.Add(1)
	if f.export == nil {
		return errors.New("export not configured")
	}
	return f.export(w, r, cms, data)
}

type fakeResources struct {
	calls atomic.Int32
	last  *http.Request
	fn    func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeResources) ServeResource(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	f.last = r
	if f.fn != nil {
		f.fn(w, r)
	}
}

type fakeObserver struct {
	mu       sync.Mutex
	handlers []string
	outcomes []string
	waits    int
}

func (o *fakeObserver) ObserveHandler(name string, hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.handlers = append(o.handlers, name)
		return
	}
	o.handlers = append(o.handlers, "miss:"+name)
}

func (o *fakeObserver) ObserveExport(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *fakeObserver) ObserveExportWait(time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.waits++
}

type fixture struct {
	rt        *Runtime
	d         *Dispatcher
	contexts  *fakeContexts
	exports   *fakeExports
	resources *fakeResources
	obs       *fakeObserver
	logs      *observer.ObservedLogs
}

func newFixture(t *testing.T, extra ...Handler) *fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	f := &fixture{
		contexts:  &fakeContexts{},
		exports:   &fakeExports{},
		resources: &fakeResources{},
		obs:       &fakeObserver{},
		logs:      logs,
	}
	rt, err := New(Options{
		ExportUser: "Export",
		Contexts:   f.contexts,
		Exports:    f.exports,
		Resources:  f.resources,
		Logger:     zap.New(core),
		Observer:   f.obs,
		Handlers:   extra,
	})
	require.NoError(t, err)
	f.rt = rt
	f.d = NewDispatcher(rt)
	return f
}

// started runs the startup hook.
func (f *fixture) started(t *testing.T) *fixture {
	t.Helper()
	require.NoError(t, f.rt.Init(context.Background()))
	return f
}

// exportFor returns a descriptor for every path.
func exportFor(r *http.Request, _ *Context) (*ExportData, bool) {
	return &ExportData{VFSName: r.URL.Path, RFSName: r.URL.Path, MimeType: "text/html"}, true
}
