// core/dispatcher.go
package core

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Dispatcher is the front controller. Paths under the handler prefix go to a
// named handler from the registry; everything else goes to the resource
// server untouched. The request method does not influence routing.
type Dispatcher struct {
	rt *Runtime
}

func NewDispatcher(rt *Runtime) *Dispatcher { return &Dispatcher{rt: rt} }

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if lvl := d.rt.Runlevel(); lvl != RunlevelRunning {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	if name, ok := d.handlerName(r.URL.Path); ok {
		d.invokeHandler(w, r, name)
		return
	}
	d.rt.resources.ServeResource(w, r)
}

// handlerName strips the handler prefix and one leading slash, so both
// "/handle404" and "/handle/404" name the "404" handler.
func (d *Dispatcher) handlerName(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, d.rt.prefix)
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(rest, "/"), true
}

func (d *Dispatcher) invokeHandler(w http.ResponseWriter, r *http.Request, name string) {
	h, ok := d.rt.registry.Lookup(name)
	d.rt.obs.ObserveHandler(name, ok)
	if !ok {
		d.rt.log.Debug("no request handler", zap.String("handler", name), zap.String("path", r.URL.Path))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.ServeHTTP(w, r)
}
