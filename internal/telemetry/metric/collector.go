// Package metric provides Prometheus metrics for Discovery.
package metric

// Collector collects custom metrics from the application.
type Collector struct {
	// TODO: Add dependencies for collecting stats
}

// NewCollector creates a new custom metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Describe sends nothing on ch. It takes a chan<- any, so Collector
// does not satisfy prometheus.Collector.
func (c *Collector) Describe(ch chan<- any) {
	// TODO: Describe metrics
}

// Collect sends nothing on ch.
func (c *Collector) Collect(ch chan<- any) {
	// TODO: Collect current values
	// - Active session count
	// - Memory usage
	// - WAL size
	// - Goroutine count
}
