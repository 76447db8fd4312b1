// Package config handles loading and validating focuserd configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via environment variables
//   - control_machines is the only command authorisation; keep it narrow
//
// Usage:
//
//	cfg, err := config.Load("configs/focuserd.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Focuser.ID)
package config
