package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// pending holds every collector declared by the files of this package; each
// file adds its own from init().
var (
	pending      []prometheus.Collector
	registerOnce sync.Once
)

func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// RegisterWith adds the package collectors to reg.
func RegisterWith(reg prometheus.Registerer) error {
	for _, c := range pending {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister installs the collectors on the default registry. Later calls
// are no-ops.
func MustRegister() {
	registerOnce.Do(func() {
		if err := RegisterWith(prometheus.DefaultRegisterer); err != nil {
			panic(err)
		}
	})
}

// Handler serves the default registry. before, when non-nil, runs on every
// scrape to refresh gauges that are sampled rather than counted.
func Handler(before func()) http.Handler {
	h := promhttp.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if before != nil {
			before()
		}
		h.ServeHTTP(w, r)
	})
}
