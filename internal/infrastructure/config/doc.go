// Package config loads HomyTech Core settings.
//
// Values are resolved in three layers: built-in defaults, the YAML file,
// then HOMYTECH_* environment variables. Validate runs last and reports
// every problem at once.
//
// Keep the broker password and the JWT secret out of the file: set
// HOMYTECH_MQTT_PASSWORD and HOMYTECH_JWT_SECRET instead.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	loc := cfg.Location() // dashboard timezone, Asia/Jakarta by default
package config
