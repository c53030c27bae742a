// Package config loads wsprobe settings with viper.
//
// Sources, lowest precedence first:
//   - built-in defaults
//   - a YAML file (--config, or wsprobe.yaml in . or ./config)
//   - WSPROBE_* environment variables (nested keys use _, e.g. WSPROBE_SERVER_ADDR)
//
// Command-line flags are applied on top by the caller.
package config
