package metrics

import "github.com/prometheus/client_golang/prometheus"

// Acquisition and generation Prometheus metrics.
var (
	CandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roteiro",
			Name:      "candidates_total",
			Help:      "Image candidates evaluated, by verdict",
		},
		[]string{"verdict"},
	)

	ImagesAcceptedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "roteiro",
			Name:      "images_accepted_bytes_total",
			Help:      "Bytes written for accepted images",
		},
	)

	AcquisitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roteiro",
			Name:      "acquisitions_total",
			Help:      "Acquisition runs, by outcome",
		},
		[]string{"outcome"},
	)

	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "roteiro",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of the candidate fetch step",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	GenerationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roteiro",
			Name:      "generation_attempts_total",
			Help:      "Text generation attempts, by model and status",
		},
		[]string{"model", "status"},
	)
)

// Register registers all collectors with reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		CandidatesTotal,
		ImagesAcceptedBytes,
		AcquisitionsTotal,
		FetchDuration,
		GenerationAttemptsTotal,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes the collectors registered with g to filename in the
// text exposition format, for the node exporter textfile collector.
func WriteFile(filename string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(filename, g)
}
