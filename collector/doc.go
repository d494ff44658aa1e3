// Package collector provides the metrics collaborators feeding the capacity
// controller: a Prometheus pull source, a host CPU source and a push buffer
// filled over HTTP.
package collector
