package metrics

import "time"

// ObserveHandler counts a handler-prefix dispatch. Names of missing handlers
// come from the request path, so they are folded into one label value.
func ObserveHandler(name string, hit bool) {
	if !hit {
		handlerDispatches.WithLabelValues("unknown", "miss").Inc()
		return
	}
	handlerDispatches.WithLabelValues(name, "hit").Inc()
}

// ObserveExport counts a not-found outcome ("done", "failed", "unavailable").
func ObserveExport(outcome string) {
	exportOutcomes.WithLabelValues(outcome).Inc()
}

func ObserveExportWait(d time.Duration) {
	exportLockWait.Observe(d.Seconds())
}

// Dispatch reports dispatcher and export activity to the package collectors.
type Dispatch struct{}

func (Dispatch) ObserveHandler(name string, hit bool) { ObserveHandler(name, hit) }
func (Dispatch) ObserveExport(outcome string)         { ObserveExport(outcome) }
func (Dispatch) ObserveExportWait(d time.Duration)    { ObserveExportWait(d) }
