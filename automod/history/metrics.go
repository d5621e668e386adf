package history

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sweepRuns = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_history_sweeps",
	Help: "Number of periodic history sweeps completed",
})

var sweepRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_history_swept_entries",
	Help: "Number of history entries removed by periodic sweeps, by kind",
}, []string{"kind"})
