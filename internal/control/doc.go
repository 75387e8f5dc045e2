// Package control sends user commands to the device controllers.
//
// A command goes to the broker first. The event log entry and the push to
// dashboard subscribers only happen once the broker accepted it:
//
//	HTTP ─▶ Service.SetDoor ─▶ mqtt publish ─┬─▶ eventlog
//	                                         └─▶ fanout.Hub.Handoff
package control
