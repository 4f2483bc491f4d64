package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProcTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveplay_proc_terminate_total",
		Help: "Signals sent to helper process groups, by signal and result",
	}, []string{"signal", "result"})

	ProcWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveplay_proc_wait_total",
		Help: "Helper process exits observed during termination, by outcome",
	}, []string{"outcome"})
)

// IncProcTerminate records a termination signal sent to a process group.
func IncProcTerminate(signal, result string) {
	ProcTerminateTotal.WithLabelValues(signal, result).Inc()
}

// IncProcWait records how a terminated process exited.
func IncProcWait(outcome string) {
	ProcWaitTotal.WithLabelValues(outcome).Inc()
}
