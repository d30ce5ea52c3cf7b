// Package prometheus provides a Prometheus implementation of
// actor.ActorMetrics.
package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/VenturaDelMonte/actor-framework/core/metrics"
)

const namespace = "actorfw"

func newTimer(h prometheus.Observer) metrics.Timer {
	return metrics.NewTimer(h.Observe)
}

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

func boolToStr(b bool) string { return strconv.FormatBool(b) }
