// Package influxdb mirrors HomyTech device events into InfluxDB.
//
// The event log in SQLite is the record dashboards read. The InfluxDB
// mirror is optional and exists for long-range charts (Grafana and the
// like). When it is disabled Connect returns ErrDisabled and the caller
// runs without it.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	}
//	defer client.Close()
//
//	client.WriteEvent(ev)
//
// Writes are batched per config (batch_size, flush_interval) and never
// block the caller.
package influxdb
