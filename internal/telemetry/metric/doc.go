// Package metric provides Prometheus metrics for Discovery.
//
// This package defines metric types without a Prometheus backend:
//
//   - prometheus.go: the Registry struct and the Counter, Gauge and
//     Histogram interfaces; NewRegistry returns a Registry whose fields
//     are all nil, and Handler returns nil
//   - collector.go: a Collector whose Describe and Collect send nothing
//
// The Registry has fields for session, request, storage and cluster
// metrics. Nothing in this package registers with Prometheus or serves
// a /metrics endpoint.
package metric
