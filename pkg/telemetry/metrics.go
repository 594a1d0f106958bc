package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushMetrics sends everything registered on the default registry to a
// Prometheus Pushgateway. A CLI process is too short-lived to be scraped, so
// each command pushes once on exit. An empty url is a no-op.
func PushMetrics(ctx context.Context, url, job, instance string) error {
	if url == "" {
		return nil
	}

	pusher := push.New(url, job).Gatherer(prometheus.DefaultGatherer)
	if instance != "" {
		pusher = pusher.Grouping("instance", instance)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
