// Package history records every focuser command in the command_history
// table and serves it back, newest first, for the HTTP API and CLI.
package history
