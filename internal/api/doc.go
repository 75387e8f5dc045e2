// Package api implements the HTTP REST API and push channels for HomyTech Core.
//
// This package provides:
//   - Device command endpoints (lights, door, clothesline, state sync)
//   - Log history, latest-state and hourly light usage queries
//   - Login and registration with JWT bearer tokens
//   - Per-channel WebSocket push (light, door, clothesline, alert)
//   - Middleware stack (request ID, logging and metrics, recovery, CORS, body limit)
//
// # Push channels
//
// Each socket at /ws/{channel} is registered as a fanout.Subscriber with the
// hub. It never reads broadcaster state; it only queues frames handed to it
// by the event loop and writes them from its own goroutine. Sockets
// authenticate with a single-use ticket from POST /api/v1/auth/ws-ticket so
// the JWT never appears in a URL.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Timestamps in responses are rendered in the site's display timezone.
package api
