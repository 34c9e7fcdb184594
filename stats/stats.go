package stats

import "github.com/prometheus/client_golang/prometheus"

import "github.com/sanjaysanjel019/serenity/defs"

const namespace = "waitk"

// Registry holds every kernel metric; the simulator serves it with promhttp.
var Registry = prometheus.NewRegistry()

var (
	Waits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "waitid_total",
		Help:      "waitid calls by result.",
	}, []string{"result"})

	Reaps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reaps_total",
		Help:      "Zombies reaped by disposition.",
	}, []string{"disposition"})

	Reports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_total",
		Help:      "Stop/continue status records built.",
	}, []string{"disposition"})

	Wakeups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wakeups_total",
		Help:      "Parked waiters woken by cause.",
	}, []string{"cause"})

	Requeues = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requeues_total",
		Help:      "Claimed events put back after an interrupt or fault.",
	})

	Parked = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "parked_waiters",
		Help:      "Threads currently parked in a wait.",
	})

	Procs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "procs",
		Help:      "Processes in the process table, zombies included.",
	})
)

func init() {
	Registry.MustRegister(Waits, Reaps, Reports, Wakeups, Requeues, Parked, Procs)
}

// Errname is the metric label for a kernel result code.
func Errname(err defs.Err_t) string {
	switch -err {
	case 0:
		return "ok"
	case defs.EINTR:
		return "eintr"
	case defs.ECHILD:
		return "echild"
	case defs.ENOCHILDREADY:
		return "enochildready"
	case defs.EFAULT:
		return "efault"
	case defs.EINVAL:
		return "einval"
	}
	return "other"
}
