package forwarder

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Stats are the forwarder's own counters, exported on /metrics.
type Stats struct {
	batches *prometheus.CounterVec
	records *prometheus.CounterVec
	samples *prometheus.CounterVec
}

// NewStats registers the forwarder counters on reg. handles reports the
// current size of the handle cache.
func NewStats(reg prometheus.Registerer, handles func() int) *Stats {
	s := &Stats{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mdm_forwarder",
			Name:      "batches_total",
			Help:      "Processed batches by verdict.",
		}, []string{"verdict"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mdm_forwarder",
			Name:      "records_total",
			Help:      "Processed records by result.",
		}, []string{"result"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mdm_forwarder",
			Name:      "samples_total",
			Help:      "Counter samples by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(s.batches, s.records, s.samples)
	if handles != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "mdm_forwarder",
			Name:      "metric_handles",
			Help:      "Metric handles held by the cache.",
		}, func() float64 { return float64(handles()) }))
	}
	return s
}

func (s *Stats) observe(v Verdict) {
	if s == nil {
		return
	}
	verdict := "ok"
	if !v.OK {
		verdict = "failed"
	}
	s.batches.WithLabelValues(verdict).Inc()
	s.records.WithLabelValues("accepted").Add(float64(v.Records - v.Rejected))
	s.records.WithLabelValues("rejected").Add(float64(v.Rejected))
	s.samples.WithLabelValues("emitted").Add(float64(v.Emitted))
	s.samples.WithLabelValues("failed").Add(float64(v.Failed))
}
