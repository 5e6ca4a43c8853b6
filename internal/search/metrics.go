package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// pathTotal counts which layer ultimately answered each search request.
var pathTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notemesh_search_path_total",
		Help: "Search requests by answering layer.",
	},
	[]string{"path"},
)

const (
	pathEmpty = "empty"
	pathCache = "cache"
	pathIndex = "index"
	pathStore = "store"
	pathError = "error"
)

func countPath(path string) {
	pathTotal.WithLabelValues(path).Inc()
}
