// Package panel serves the read-only browser status panel.
//
// The panel is a static page embedded into the binary. It subscribes to
// the API WebSocket and renders status snapshots and lifecycle events, so
// it needs no endpoints of its own. Handler can serve a directory instead
// of the embedded copy while the page is being edited.
package panel
