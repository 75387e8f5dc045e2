package influxdb

import (
	"strconv"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/homytech-core/internal/device"
)

// measurementDeviceEvents holds one point per logged device event.
const measurementDeviceEvents = "device_events"

// WriteEvent queues ev as a point. It never blocks on the network.
func (c *Client) WriteEvent(ev device.Event) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(eventPoint(ev))
}

// eventPoint maps ev to the device_events measurement.
//
// Channel, source and device id are tags; action and actor are fields so
// free-form actor names do not grow series cardinality.
func eventPoint(ev device.Event) *write.Point {
	tags := map[string]string{
		"channel": string(ev.Channel),
		"source":  ev.Source,
	}
	if ev.DeviceID != nil {
		tags["device_id"] = strconv.Itoa(*ev.DeviceID)
	}

	fields := map[string]any{
		"action": ev.Action,
		"actor":  ev.Actor,
	}
	if ev.Channel == device.ChannelLight {
		on := 0
		if ev.Action == device.ActionOn {
			on = 1
		}
		fields["on"] = on
	}

	return write.NewPoint(measurementDeviceEvents, tags, fields, ev.Timestamp)
}
