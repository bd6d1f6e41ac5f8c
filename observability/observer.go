package observability

import (
	"context"

	"github.com/skillsenselab/harnesskit/connection"
)

// MetricsObserver records connection lifecycle events as OpenTelemetry
// metrics. Attach it to the connection manager alongside the logging
// observer.
type MetricsObserver struct {
	metrics *ConnectionMetrics
}

// NewMetricsObserver creates an observer backed by the given instruments. A
// nil metrics set builds instruments on the global meter.
func NewMetricsObserver(metrics *ConnectionMetrics) (*MetricsObserver, error) {
	if metrics == nil {
		var err error
		metrics, err = NewConnectionMetrics(Meter("harnesskit/connection"))
		if err != nil {
			return nil, err
		}
	}
	return &MetricsObserver{metrics: metrics}, nil
}

func (o *MetricsObserver) OnConnectionEvent(ctx context.Context, event connection.Event) error {
	o.metrics.RecordEvent(ctx, string(event.Type), event.ServiceType)
	return nil
}
