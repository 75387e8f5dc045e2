// Package usage reports how long each light was on.
//
// The event log only records changes, and may record them out of order.
// Aggregate rebuilds the ON intervals from those changes and adds them up
// per bucket:
//
//	window:   |  08:00  |  09:00  |  10:00  | ...
//	light 1:     on ─────────┤off
//	minutes:      60       30        0
//
// A light that was on before the window starts counts from the window
// start. A light still on counts until now.
package usage
