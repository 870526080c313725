package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Principal is the identity an execution context runs as.
type Principal struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Context is the execution context downstream operations run under. It is
// built per request and never persisted.
type Context struct {
	Principal   Principal
	RequestPath string
	SiteRoot    string
	RequestTime time.Time
	Extra       map[string]any
}

// ExportData describes how a request path maps to a static artifact. A nil
// *ExportData means the path is not exportable.
type ExportData struct {
	VFSName  string // resource in the content tree
	RFSName  string // path relative to the export directory
	MimeType string
}

func (d *ExportData) String() string {
	if d == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s -> %s", d.VFSName, d.RFSName)
}

// ContextProvider builds execution contexts. An empty user resolves the
// principal from the request itself.
type ContextProvider interface {
	InitContext(r *http.Request, w http.ResponseWriter, user string, extra map[string]any) (*Context, error)
}

// ExportProvider decides whether a path is exportable and performs the export.
type ExportProvider interface {
	ExportData(r *http.Request, cms *Context) (*ExportData, bool)
	Export(w http.ResponseWriter, r *http.Request, cms *Context, data *ExportData) error
}

// ResourceServer runs the full serve pipeline for ordinary content requests.
type ResourceServer interface {
	ServeResource(w http.ResponseWriter, r *http.Request)
}

// Observer receives dispatch and export measurements.
type Observer interface {
	ObserveHandler(name string, hit bool)
	ObserveExport(outcome string)
	ObserveExportWait(d time.Duration)
}

// Handler is an internal request handler reachable under the handler prefix.
type Handler interface {
	http.Handler
	HandlerName() string
}

// HandlerFunc adapts a function to a named Handler.
func HandlerFunc(name string, fn http.HandlerFunc) Handler {
	return namedFunc{name: name, fn: fn}
}

type namedFunc struct {
	name string
	fn   http.HandlerFunc
}

func (n namedFunc) HandlerName() string                              { return n.name }
func (n namedFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) { n.fn(w, r) }

type contextKey struct{ name string }

var cmsCtxKey = &contextKey{"cms"}

// WithContext stores cms on ctx.
func WithContext(ctx context.Context, cms *Context) context.Context {
	return context.WithValue(ctx, cmsCtxKey, cms)
}

// FromContext returns the execution context stored by WithContext, if any.
func FromContext(ctx context.Context) (*Context, bool) {
	cms, ok := ctx.Value(cmsCtxKey).(*Context)
	return cms, ok && cms != nil
}
