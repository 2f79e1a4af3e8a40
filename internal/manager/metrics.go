package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "slot",
			Name:      "loads_total",
			Help:      "Load attempts by result",
		},
		[]string{"result"},
	)

	loadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "imaged",
			Subsystem: "slot",
			Name:      "load_duration_seconds",
			Help:      "Duration of loader invocations in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	slotStateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "imaged",
			Subsystem: "slot",
			Name:      "state",
			Help:      "1 for the current slot state, 0 otherwise",
		},
		[]string{"state"},
	)

	leasesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "imaged",
			Subsystem: "slot",
			Name:      "inflight_leases",
			Help:      "Outstanding inference leases",
		},
	)

	artifactsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "imaged",
			Subsystem: "catalog",
			Name:      "artifacts",
			Help:      "Indexed artifacts",
		},
	)

	rescansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "catalog",
			Name:      "rescans_total",
			Help:      "Rescans by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(loadsCounter, loadDuration, slotStateGauge, leasesGauge, artifactsGauge, rescansTotal)
}

func setSlotState(s State) {
	for _, st := range allStates {
		v := 0.0
		if st == s {
			v = 1
		}
		slotStateGauge.WithLabelValues(string(st)).Set(v)
	}
}
