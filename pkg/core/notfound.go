// core/notfound.go
package core

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	chimd "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	NotFoundHandlerName = "404"
	StatusHandlerName   = "status"
)

// ExportOutcome classifies a not-found request.
type ExportOutcome int

const (
	ExportUnavailable ExportOutcome = iota
	ExportFailed
	ExportDone
)

func (o ExportOutcome) String() string {
	switch o {
	case ExportUnavailable:
		return "unavailable"
	case ExportFailed:
		return "failed"
	case ExportDone:
		return "done"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ExportResult is what the not-found handler matches on.
type ExportResult struct {
	Outcome   ExportOutcome
	Data      *ExportData
	Err       error
	Committed bool // the export already wrote a status or body
}

// ExportStats counts not-found outcomes since startup.
type ExportStats struct {
	Done        uint64 `json:"done"`
	Failed      uint64 `json:"failed"`
	Unavailable uint64 `json:"unavailable"`
}

// NotFoundHandler turns unresolved paths into static exports when the export
// provider knows how to produce them, and into 404 otherwise. It always runs
// as the export user, never as the caller.
//
// Exports are serialized by a single lock shared by all requests.
//
// Every failure, panics included, ends in a 404. That also hides genuine
// programming errors inside export providers; they show up only in the warn
// log.
type NotFoundHandler struct {
	rt *Runtime
	mu sync.Mutex

	done        atomic.Uint64
	failed      atomic.Uint64
	unavailable atomic.Uint64
}

func (h *NotFoundHandler) HandlerName() string { return NotFoundHandlerName }

func (h *NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res := h.handle(w, r)
	h.rt.obs.ObserveExport(res.Outcome.String())
	switch res.Outcome {
	case ExportDone:
		h.done.Add(1)
	case ExportFailed:
		h.failed.Add(1)
		h.rt.log.Warn("error exporting",
			zap.String("path", r.URL.Path),
			zap.Stringer("export", res.Data),
			zap.Error(res.Err),
		)
		if res.Committed {
			// Response already belongs to the export; nothing sane left to send.
			return
		}
		http.NotFound(w, r)
	case ExportUnavailable:
		h.unavailable.Add(1)
		http.NotFound(w, r)
	}
}

func (h *NotFoundHandler) Stats() ExportStats {
	return ExportStats{
		Done:        h.done.Load(),
		Failed:      h.failed.Load(),
		Unavailable: h.unavailable.Load(),
	}
}

func (h *NotFoundHandler) handle(w http.ResponseWriter, r *http.Request) ExportResult {
	cms, data, err := h.lookup(w, r)
	if err != nil {
		h.rt.log.Warn("error initializing context in not-found handler",
			zap.String("path", r.URL.Path),
			zap.String("user", h.rt.exportUser),
			zap.Error(err),
		)
		return ExportResult{Outcome: ExportUnavailable, Err: err}
	}
	if data == nil {
		return ExportResult{Outcome: ExportUnavailable}
	}
	return h.export(w, r, cms, data)
}

func (h *NotFoundHandler) lookup(w http.ResponseWriter, r *http.Request) (cms *Context, data *ExportData, err error) {
	defer func() {
		if p := recover(); p != nil {
			cms, data, err = nil, nil, fmt.Errorf("panic: %v", p)
		}
	}()
	cms, err = h.rt.contexts.InitContext(r, w, h.rt.exportUser, nil)
	if err != nil {
		return nil, nil, err
	}
	d, ok := h.rt.exports.ExportData(r.WithContext(WithContext(r.Context(), cms)), cms)
	if !ok {
		return cms, nil, nil
	}
	return cms, d, nil
}

func (h *NotFoundHandler) export(w http.ResponseWriter, r *http.Request, cms *Context, data *ExportData) (res ExportResult) {
	ww := chimd.NewWrapResponseWriter(w, r.ProtoMajor)
	res = ExportResult{Outcome: ExportDone, Data: data}

	start := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rt.obs.ObserveExportWait(time.Since(start))

	defer func() {
		if p := recover(); p != nil {
			res.Outcome = ExportFailed
			res.Err = fmt.Errorf("panic: %v", p)
		}
		res.Committed = ww.Status() != 0 || ww.BytesWritten() > 0
	}()

	if err := h.rt.exports.Export(ww, r.WithContext(WithContext(r.Context(), cms)), cms, data); err != nil {
		res.Outcome = ExportFailed
		res.Err = err
	}
	return res
}
