package server

import (
	"fmt"
	"net/http"

	"github.com/VictoriaMetrics/metrics"
	"github.com/kvshard/core/wire"

	_ "net/http/pprof"
)

// recordRequest tracks one dispatched request's outcome and latency,
// labeled by shard and op so a scrape can break both down.
func recordRequest(shardID uint64, op wire.OpCode, seconds float64, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`shard_requests_total{shard="%d",op="%s",status="%s"}`, shardID, op, status)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`shard_request_duration_seconds{shard="%d",op="%s"}`, shardID, op)).Update(seconds)
}

// startDebugServer serves pprof profiles (registered via the anonymous
// net/http/pprof import) and a Prometheus-format dump of this process's
// metrics on addr. It runs until the process exits; a failure here is
// logged rather than fatal, since profiling is a diagnostic aid and
// should never take down request serving.
func startDebugServer(addr string) {
	http.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	go func() {
		logger.Infof("debug server listening on %s", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Errorf("debug server: %v", err)
		}
	}()
}
