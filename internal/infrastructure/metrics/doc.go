// Package metrics exposes HomyTech Core counters in the Prometheus format.
//
// A Registry is created once at startup and passed to the components that
// report into it. It does not use the global Prometheus registry, so tests
// can build as many as they need.
package metrics
