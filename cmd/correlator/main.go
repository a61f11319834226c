// Correlator is an HTTP server that correlates every request's trace,
// logs, metrics and resource usage under one trace identity.
//
// Usage:
//
//	# Start with the built-in defaults
//	correlator run
//
//	# Start with a configuration file
//	correlator run --config /etc/correlator/config.yaml
//
//	# Check a configuration file
//	correlator validate --config config.yaml
//
//	# Show how a set of headers would be resolved
//	correlator inspect -H "traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
//
//	# Show version information
//	correlator version
package main

import "os"

func main() {
	os.Exit(Execute())
}
