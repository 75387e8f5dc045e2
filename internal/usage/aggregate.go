package usage

import (
	"slices"
	"time"

	"github.com/nerrad567/homytech-core/internal/device"
)

// Input is everything Aggregate needs. It is not modified.
type Input struct {
	// WindowStart is the start of the first bucket.
	WindowStart time.Time
	// Now closes intervals still on at the end of the log. Zero means the
	// end of the window.
	Now time.Time

	Buckets    int
	BucketSize time.Duration
	DeviceIDs  []int

	// Events are light events inside the window, in any order. Events
	// without a device id, or for devices not in DeviceIDs, are ignored.
	Events []device.Event

	// LastBefore holds, per device, the action of the newest event before
	// WindowStart. A device absent from the map is treated as off.
	LastBefore map[int]string
}

// Bucket is the ON time per device inside [Start, Start+BucketSize).
type Bucket struct {
	Start   time.Time
	Minutes map[int]int
}

// transition is one on/off change for one device.
type transition struct {
	on bool
	at time.Time
}

// Aggregate reconstructs ON intervals per device and sums them into
// buckets aligned to WindowStart.
//
// The result always has in.Buckets buckets, each with an entry for every
// device id. Interval pieces are floored to whole minutes per bucket, so a
// device never accumulates more minutes than the window holds. "on" while
// already on moves the interval start; "off" while off is ignored.
func Aggregate(in Input) []Bucket {
	n := max(in.Buckets, 0)
	buckets := make([]Bucket, n)
	for i := range buckets {
		buckets[i] = Bucket{
			Start:   in.WindowStart.Add(time.Duration(i) * in.BucketSize),
			Minutes: make(map[int]int, len(in.DeviceIDs)),
		}
		for _, id := range in.DeviceIDs {
			buckets[i].Minutes[id] = 0
		}
	}
	if n == 0 || in.BucketSize <= 0 {
		return buckets
	}

	a := accumulator{
		buckets:     buckets,
		windowStart: in.WindowStart,
		windowEnd:   in.WindowStart.Add(time.Duration(n) * in.BucketSize),
		size:        in.BucketSize,
	}
	a.closeAt = a.windowEnd
	if !in.Now.IsZero() && in.Now.Before(a.windowEnd) {
		a.closeAt = in.Now
	}

	for _, id := range in.DeviceIDs {
		a.walk(id, transitionsFor(id, in))
	}
	return buckets
}

// transitionsFor returns the device's on/off changes sorted by time,
// seeded with a virtual "on" at the window start when the device was
// already on.
func transitionsFor(id int, in Input) []transition {
	var ts []transition
	if isOn(in.LastBefore[id]) {
		ts = append(ts, transition{on: true, at: in.WindowStart})
	}

	for _, ev := range in.Events {
		if ev.DeviceID == nil || *ev.DeviceID != id || ev.Timestamp.IsZero() {
			continue
		}
		switch {
		case isOn(ev.Action):
			ts = append(ts, transition{on: true, at: ev.Timestamp})
		case isOff(ev.Action):
			ts = append(ts, transition{on: false, at: ev.Timestamp})
		}
	}

	// Stable, so equal timestamps keep log order.
	slices.SortStableFunc(ts, func(a, b transition) int {
		return a.at.Compare(b.at)
	})
	return ts
}

type accumulator struct {
	buckets     []Bucket
	windowStart time.Time
	windowEnd   time.Time
	closeAt     time.Time
	size        time.Duration
}

func (a *accumulator) walk(id int, ts []transition) {
	on := false
	var since time.Time

	for _, t := range ts {
		switch {
		case t.on:
			on = true
			since = t.at
		case on:
			a.add(id, since, t.at)
			on = false
		}
	}

	if on {
		a.add(id, since, a.closeAt)
	}
}

// add spreads [start, end) across the buckets it overlaps. Parts outside
// the window are dropped.
func (a *accumulator) add(id int, start, end time.Time) {
	if start.Before(a.windowStart) {
		start = a.windowStart
	}
	if end.After(a.windowEnd) {
		end = a.windowEnd
	}

	for start.Before(end) {
		idx := int(start.Sub(a.windowStart) / a.size)
		if idx < 0 || idx >= len(a.buckets) {
			return
		}
		bucketEnd := a.buckets[idx].Start.Add(a.size)
		segmentEnd := end
		if bucketEnd.Before(segmentEnd) {
			segmentEnd = bucketEnd
		}
		a.buckets[idx].Minutes[id] += int(segmentEnd.Sub(start) / time.Minute)
		start = segmentEnd
	}
}

// Actions match exactly; "ON" or "Off" rows are ignored like any other
// action.
func isOn(action string) bool  { return action == device.ActionOn }
func isOff(action string) bool { return action == device.ActionOff }
