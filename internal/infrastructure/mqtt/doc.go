// Package mqtt manages the HomyTech core's single broker connection.
//
// This package manages:
//   - Bounded initial connection (fixed attempts, fixed delay)
//   - Connection state (disconnected, connecting, connected, failed)
//   - Subscriptions restored on every reconnect
//   - Outbound command publishing
//   - Last Will and Testament on {prefix}/system/status
//
// # Architecture
//
// Device controllers and the core never talk directly; the broker relays
// both directions:
//
//	RFID reader, rain sensor ─▶ broker ─▶ core (door, clothesline, alert)
//	core ─▶ broker ─▶ light, door, clothesline controllers
//
// Paho runs its own receive goroutines. Message handlers are called there,
// so they must hand work to other goroutines rather than block.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT, log)
//	client.SubscribeAll(client.Topics().Inbound(), 1, dispatcher.HandleMessage)
//	if err := client.Connect(ctx); err != nil {
//	    return err // bridge cannot start
//	}
//	defer client.Close()
//
//	client.Publish(client.Topics().DoorCommand(), map[string]string{"action": "open"})
package mqtt
