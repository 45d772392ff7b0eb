package measurement

import "github.com/prometheus/client_golang/prometheus"

// PromCollector exports the four ring-buffer collectors as Prometheus
// gauges (latest p50/p95/average), refreshed on each Collect call -
// the cheap pull-based alternative to wiring a histogram per sample.
type PromCollector struct {
	collectors *Collectors

	sessionSetup *prometheus.GaugeVec
	controlRTT   *prometheus.GaugeVec
	videoLatency *prometheus.GaugeVec
	revocation   *prometheus.GaugeVec
	clockOffsets prometheus.Gauge
}

func NewPromCollector(c *Collectors) *PromCollector {
	gv := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "teleop",
			Name:      name,
			Help:      help,
		}, []string{"quantile"})
	}
	return &PromCollector{
		collectors:   c,
		sessionSetup: gv("session_setup_ms", "Session setup latency in milliseconds"),
		controlRTT:   gv("control_rtt_ms", "Control channel round-trip time in milliseconds"),
		videoLatency: gv("video_latency_ms", "Video frame glass-to-glass latency in milliseconds"),
		revocation:   gv("revocation_latency_ms", "Revocation-to-safe-stop latency in milliseconds"),
		clockOffsets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "teleop",
			Name:      "video_clock_offset_flags_total",
			Help:      "Count of video latency samples flagged for clock offset beyond 100ms",
		}),
	}
}

// Describe implements prometheus.Collector.
func (p *PromCollector) Describe(ch chan<- *prometheus.Desc) {
	p.sessionSetup.Describe(ch)
	p.controlRTT.Describe(ch)
	p.videoLatency.Describe(ch)
	p.revocation.Describe(ch)
	ch <- p.clockOffsets.Desc()
}

// Collect implements prometheus.Collector, recomputing quantiles from
// the live ring buffers at scrape time.
func (p *PromCollector) Collect(ch chan<- prometheus.Metric) {
	set := func(gv *prometheus.GaugeVec, s Stats) {
		gv.WithLabelValues("p50").Set(s.P50)
		gv.WithLabelValues("p95").Set(s.P95)
		gv.WithLabelValues("avg").Set(s.Average)
		gv.Collect(ch)
	}
	set(p.sessionSetup, p.collectors.SessionSetup.Stats())
	set(p.controlRTT, p.collectors.ControlRTT.Stats())
	set(p.videoLatency, p.collectors.VideoLatency.Stats())
	set(p.revocation, p.collectors.Revocation.Stats())

	p.clockOffsets.Set(float64(p.collectors.VideoLatency.ClockOffsetFlags()))
	ch <- p.clockOffsets
}
