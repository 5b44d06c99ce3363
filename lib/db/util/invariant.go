package util

import (
	"fmt"
	"io"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	promclient "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Invariants are conditions the engine itself guarantees, such as "segment
// ordinals never collide". A violation means a bug or an out-of-band change to
// the storage directory. RaiseInvariant records it; the caller still has to
// return an error.

var invariantLogger = logger.GetLogger("invariant")

// InvariantRegistry holds only the invariant counters, without go runtime collectors
var InvariantRegistry = prometheus.NewRegistry()

var invariantsMetric = promauto.With(InvariantRegistry).NewCounterVec(prometheus.CounterOpts{
	Name: "skv_invariant_violations_total",
	Help: "The total number of invariant violations",
}, []string{
	"module", // package that detected the violation
	"type",   // kind of violation
})

// RaiseInvariant counts an invariant violation and logs it at error level.
func RaiseInvariant(module, invariantType, msg string, args ...interface{}) {
	invariantsMetric.WithLabelValues(module, invariantType).Inc()
	invariantLogger.Errorf("[%s/%s] %s", module, invariantType, fmt.Sprintf(msg, args...))
}

// InvariantCount returns how often the given invariant was raised.
func InvariantCount(module, invariantType string) int {
	metric := &promclient.Metric{}
	if err := invariantsMetric.WithLabelValues(module, invariantType).Write(metric); err != nil {
		invariantLogger.Errorf("failed to read invariant metric: %v", err)
		return 0
	}
	return int(metric.GetCounter().GetValue())
}

// WriteInvariantMetrics writes the invariant counters in Prometheus text format.
// Nothing is written before the first violation.
func WriteInvariantMetrics(w io.Writer) error {
	families, err := InvariantRegistry.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return err
		}
	}
	return nil
}
