// Package config provides hookbus configuration.
//
// Settings are layered, lowest precedence first:
//
//  1. Built-in defaults (see Default)
//  2. A config file in TOML (.toml) or YAML (.yaml, .yml)
//  3. A .env file next to the config file (never overrides real variables)
//  4. HOOKBUS_* environment variables
//
// Environment variables map onto setting paths by section: HOOKBUS_LOG_LEVEL
// sets log.level and HOOKBUS_SCRIPTS_PATHS sets scripts.paths, a comma
// separated list.
//
// Example config file:
//
//	[log]
//	level = "debug"
//	format = "json"
//
//	[registry]
//	id_format = "uuid"
//	default_priority = 10
//
//	[scripts]
//	manifest = "hooks.hcl"
//	paths = ["scripts/audit.lua"]
//	watch_debounce = "200ms"
package config
