package daemon

import "github.com/prometheus/client_golang/prometheus"

var (
	spawnedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opcore",
		Subsystem: "daemon",
		Name:      "spawned_total",
		Help:      "Number of daemon/timer handler tasks spawned.",
	}, []string{"kind"})

	signalledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opcore",
		Subsystem: "daemon",
		Name:      "signalled_total",
		Help:      "Number of daemon/timer tasks signalled to stop.",
	}, []string{"reason"})

	cancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "opcore",
		Subsystem: "daemon",
		Name:      "cancelled_total",
		Help:      "Number of daemon/timer tasks force-cancelled after their backoff grace period elapsed.",
	})

	abandonedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "opcore",
		Subsystem: "daemon",
		Name:      "abandoned_total",
		Help:      "Number of daemon/timer tasks that outlived their cancellation timeout and were given up on.",
	})

	inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "opcore",
		Subsystem: "daemon",
		Name:      "in_flight",
		Help:      "Number of daemon/timer tasks currently running.",
	})
)

func init() {
	prometheus.MustRegister(spawnedTotal, signalledTotal, cancelledTotal, abandonedTotal, inFlight)
}

// RecordSpawn increments the spawn counter for kind and bumps the
// in-flight gauge. Call once per successfully started DaemonRecord.
func RecordSpawn(kind Kind) {
	spawnedTotal.WithLabelValues(kind.String()).Inc()
	inFlight.Inc()
}

// RecordExit decrements the in-flight gauge. Call once per DaemonRecord
// whose runner goroutine has returned.
func RecordExit() {
	inFlight.Dec()
}

// RecordSignalled increments the signalled counter for reason.
func RecordSignalled(reason Reason) {
	signalledTotal.WithLabelValues(reasonLabel(reason)).Inc()
}

// RecordCancelled increments the force-cancel counter.
func RecordCancelled() {
	cancelledTotal.Inc()
}

// RecordAbandoned increments the abandoned counter.
func RecordAbandoned() {
	abandonedTotal.Inc()
}

func reasonLabel(reason Reason) string {
	switch reason {
	case ResourceDeleted:
		return "resource_deleted"
	case OperatorExiting:
		return "operator_exiting"
	case DaemonSignalled:
		return "daemon_signalled"
	case DaemonCancelled:
		return "daemon_cancelled"
	case DaemonAbandoned:
		return "daemon_abandoned"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}
