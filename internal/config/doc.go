// Package config handles configuration loading for coven-chat.
//
// # Configuration File
//
// Location, first match wins:
//
//  1. Path from the COVEN_CHAT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/chat.yaml
//  3. ~/.config/coven/chat.yaml
//
// A missing file at 2 or 3 is not an error; Default() is used instead.
// Files ending in .toml are read as TOML, anything else as YAML. Fields the
// file leaves out keep their defaults.
//
// # Environment Variable Expansion
//
//	auth:
//	  jwt_secret: "${COVEN_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to "".
//
// # Configuration Sections
//
//	agent:
//	  url: "http://localhost:8001/api/pydantic-github-agent"
//	  user_id: "NA"
//	  timeout: "60s"
//	  listen_addr: "localhost:8001"   # fake-agent only
//
//	database:
//	  path: "./chat.db"   # default: $XDG_DATA_HOME/coven/chat.db
//
//	changefeed:
//	  poll_interval: "250ms"
//	  batch_size: 100
//
//	auth:
//	  jwt_secret: "${COVEN_JWT_SECRET}"
//	  session_ttl: "168h"
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "text"   # text or json
//
// Durations use time.ParseDuration syntax.
package config
