package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PaymentMetrics records gateway callback outcomes so settlement anomalies
// (checksum failures, amount mismatches) are visible on dashboards.
type PaymentMetrics struct {
	callbacks metric.Int64Counter
}

// NewPaymentMetrics registers the payment instruments on the global meter provider.
func NewPaymentMetrics() (*PaymentMetrics, error) {
	meter := otel.Meter("github.com/arzanfood/api/internal/platform/observability")
	callbacks, err := meter.Int64Counter("payments.gateway.callbacks",
		metric.WithDescription("Gateway callback requests by stage and outcome"),
	)
	if err != nil {
		return nil, err
	}
	return &PaymentMetrics{callbacks: callbacks}, nil
}

// RecordCallback counts one callback with its stage (precheck/confirm) and outcome.
func (m *PaymentMetrics) RecordCallback(ctx context.Context, stage, outcome string) {
	if m == nil || m.callbacks == nil {
		return
	}
	m.callbacks.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", sanitizeString(stage, 16)),
			attribute.String("outcome", sanitizeString(outcome, 32)),
		),
	)
}
