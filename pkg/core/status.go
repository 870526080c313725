package core

import (
	"net/http"

	"github.com/joeydtaylor/steeze-cms/pkg/codec"
)

// StatusHandler reports runlevel, registered handlers and export counters.
type StatusHandler struct {
	rt *Runtime
}

type statusDoc struct {
	Runlevel string      `json:"runlevel"`
	Handlers []string    `json:"handlers"`
	Exports  ExportStats `json:"exports"`
}

func (h *StatusHandler) HandlerName() string { return StatusHandlerName }

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	out, err := codec.JSONStrict.Marshal(statusDoc{
		Runlevel: h.rt.Runlevel().String(),
		Handlers: h.rt.registry.Names(),
		Exports:  h.rt.notFound.Stats(),
	})
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", codec.JSONStrict.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
