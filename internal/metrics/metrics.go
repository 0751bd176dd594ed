package metrics

import (
	"net/http"
	"time"
)

// Metrics interface for dependency injection
type Metrics interface {
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)
	RecordCheckout(storeID, outcome string)
	RecordWebhookEvent(eventType, outcome string)
	RecordPriceChange(storeID string)
	RecordPendingOrdersReaped(count int)
	SetDBConnectionsActive(count float64)
	RecordDBQuery(operation, status string)
	Handler() http.Handler
}

// NoOpMetrics provides a no-op implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (m *NoOpMetrics) RecordCheckout(storeID, outcome string)          {}
func (m *NoOpMetrics) RecordWebhookEvent(eventType, outcome string)    {}
func (m *NoOpMetrics) RecordPriceChange(storeID string)                {}
func (m *NoOpMetrics) RecordPendingOrdersReaped(count int)             {}
func (m *NoOpMetrics) SetDBConnectionsActive(count float64)            {}
func (m *NoOpMetrics) RecordDBQuery(operation, status string)          {}
func (m *NoOpMetrics) Handler() http.Handler                           { return http.NotFoundHandler() }

// Global metrics instance
var globalMetrics Metrics = &NoOpMetrics{}

// Init initializes metrics (no-op for now, can be extended with Prometheus)
func Init() {
	// For now, keep using no-op metrics
	// In a full implementation, this would initialize Prometheus metrics
}

// Handler returns the metrics handler
func Handler() http.Handler {
	return globalMetrics.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	globalMetrics.RecordHTTPRequest(method, endpoint, statusCode, duration)
}

// RecordCheckout records checkout attempt outcomes
func RecordCheckout(storeID, outcome string) {
	globalMetrics.RecordCheckout(storeID, outcome)
}

// RecordWebhookEvent records webhook reconciliation outcomes
func RecordWebhookEvent(eventType, outcome string) {
	globalMetrics.RecordWebhookEvent(eventType, outcome)
}

// RecordPriceChange records merchant price mutations
func RecordPriceChange(storeID string) {
	globalMetrics.RecordPriceChange(storeID)
}

// RecordPendingOrdersReaped records housekeeping sweep results
func RecordPendingOrdersReaped(count int) {
	globalMetrics.RecordPendingOrdersReaped(count)
}

// SetDBConnectionsActive sets the number of active database connections
func SetDBConnectionsActive(count float64) {
	globalMetrics.SetDBConnectionsActive(count)
}

// RecordDBQuery records database query metrics
func RecordDBQuery(operation, status string) {
	globalMetrics.RecordDBQuery(operation, status)
}
