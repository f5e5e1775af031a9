package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/tarla/storefront/internal/config"
)

// InitMeterProvider installs a Prometheus-backed global MeterProvider and
// returns the /metrics handler with its shutdown func.
func InitMeterProvider(cfg config.TelemetryConfig) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(newResource(cfg)),
	)
	otel.SetMeterProvider(mp)

	return promhttp.Handler(), mp.Shutdown, nil
}

// ShopMetrics records storefront business counters. A nil *ShopMetrics is
// valid and records nothing.
type ShopMetrics struct {
	ordersPlaced     metric.Int64Counter
	revenue          metric.Int64Counter
	discountsApplied metric.Int64Counter
	cartRejections   metric.Int64Counter
}

func NewShopMetrics() (*ShopMetrics, error) {
	meter := otel.Meter("github.com/tarla/storefront")

	ordersPlaced, err := meter.Int64Counter("storefront.orders.placed",
		metric.WithDescription("Orders created at checkout"))
	if err != nil {
		return nil, err
	}
	revenue, err := meter.Int64Counter("storefront.orders.revenue",
		metric.WithDescription("Final price of placed orders"),
		metric.WithUnit("{toman}"))
	if err != nil {
		return nil, err
	}
	discountsApplied, err := meter.Int64Counter("storefront.discounts.applied",
		metric.WithDescription("Discount codes accepted into a session"))
	if err != nil {
		return nil, err
	}
	cartRejections, err := meter.Int64Counter("storefront.cart.rejections",
		metric.WithDescription("Cart mutations rejected"))
	if err != nil {
		return nil, err
	}

	return &ShopMetrics{
		ordersPlaced:     ordersPlaced,
		revenue:          revenue,
		discountsApplied: discountsApplied,
		cartRejections:   cartRejections,
	}, nil
}

func (m *ShopMetrics) OrderPlaced(ctx context.Context, finalPrice int64, discounted bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("discounted", discounted))
	m.ordersPlaced.Add(ctx, 1, attrs)
	m.revenue.Add(ctx, finalPrice, attrs)
}

func (m *ShopMetrics) DiscountApplied(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.discountsApplied.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

func (m *ShopMetrics) CartRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.cartRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
