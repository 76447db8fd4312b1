// Package positions persists the last commanded position of every focuser
// channel to a small JSON file.
//
// The file is a flat object mapping channel keys to positions:
//
//	{"tube": 12.5, "camera": -0.25}
//
// Persistence is best-effort. Load never fails: a missing, unreadable or
// corrupt file yields an empty map. Save replaces the file atomically
// (temp file plus rename) while holding an advisory lock on "<path>.lock"
// so a concurrent reader never sees a half-written file.
package positions
