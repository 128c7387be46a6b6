// Package config resolves the nextup runtime configuration.
//
// Values are layered from lowest to highest precedence: built-in defaults
// (XDG data and config directories), an optional TOML file, a dotenv file,
// NEXTUP_* environment variables and finally command-line flags, which the
// cmd package applies on top of Load's result before calling Validate.
//
// Example config.toml:
//
//	addr = "127.0.0.1:5000"
//	calendar = "primary"
//	token_file = "/home/me/.local/share/nextup/token.json"
//	credentials_file = "/home/me/.config/nextup/credentials.json"
//	open_browser = false
//	auth_timeout = "5m"
//	log_format = "json"
package config
