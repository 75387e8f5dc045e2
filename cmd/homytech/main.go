// HomyTech Core bridges home devices on an MQTT broker to web dashboards.
//
// Device state changes arrive from the broker, are recorded in the event
// log and pushed to dashboard subscribers over per-channel websockets.
// Dashboard commands travel the other way: REST call, broker publish, log
// entry, push.
package main

import (
	"fmt"
	"os"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
