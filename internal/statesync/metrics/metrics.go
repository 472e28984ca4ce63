package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricsPrefix = "slurmdash_"

var ChannelConnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: MetricsPrefix + "channel_connects_total",
	Help: "Number of successful push channel connections",
})

var ChannelDisconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: MetricsPrefix + "channel_disconnects_total",
	Help: "Number of push channel disconnections",
})

var ChannelConnected = promauto.NewGauge(prometheus.GaugeOpts{
	Name: MetricsPrefix + "channel_connected",
	Help: "1 while the push channel is open",
})

var DecodeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: MetricsPrefix + "decode_failures_total",
	Help: "Number of malformed push messages or poll responses dropped",
})

var PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: MetricsPrefix + "polls_total",
	Help: "Number of host status polls issued",
}, []string{"host"})

var PollFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: MetricsPrefix + "poll_failures_total",
	Help: "Number of host status polls that failed",
}, []string{"host"})

var StalenessVetoesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: MetricsPrefix + "staleness_vetoes_total",
	Help: "Number of refreshes suppressed by the staleness gate",
})

var JobsTracked = promauto.NewGauge(prometheus.GaugeOpts{
	Name: MetricsPrefix + "jobs_tracked",
	Help: "Number of jobs currently held in the job record store",
})
