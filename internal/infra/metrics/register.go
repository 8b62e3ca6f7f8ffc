package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors are queued by init() in each file of this package.
var (
	once    sync.Once
	pending []prometheus.Collector
)

func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// Register adds every queued collector to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range pending {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister registers with the default registry. Later calls are no-ops.
func MustRegister() {
	once.Do(func() {
		if err := Register(prometheus.DefaultRegisterer); err != nil {
			panic(err)
		}
	})
}

// norm lowercases label values so callers can pass raw input.
func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
