// Package docrt defines the document runtime protocol: the typed contract
// between the customization engine and a host that owns a rendered document.
//
// A runtime exposes two primitives (execute a read query, execute a mutation)
// plus document identity. Every request is a plain data value from
// a closed set of kinds; no executable code crosses the boundary. Runtimes
// that support user interaction additionally push events (clicks, hovers)
// through the optional EventSource capability, discovered by type assertion.
//
// Two implementations ship with this module: memdoc (parsed HTML tree, used
// by tests and offline transformation) and roddoc (live Chromium page).
//
// Addresses returned by runtimes are canonical strings (see Address) and stay
// valid only while the document shape is unchanged: mutations that reorder
// siblings or remove ancestors invalidate path-based addresses. Callers that
// need durable references across mutations should prefer id-based addresses.
package docrt

import "context"

// Runtime is the document handle the engine operates through. All calls are
// single round trips; implementations do not retry and report document-side
// faults unmodified.
type Runtime interface {
	// Info reports the document's identity.
	Info(ctx context.Context) (*DocInfo, error)

	// Query executes a read against the live document.
	Query(ctx context.Context, q Query) (*Result, error)

	// Mutate executes a write against the live document. A target matching
	// zero nodes yields Count 0, not an error.
	Mutate(ctx context.Context, m Mutation) (*Result, error)

	// Close releases the document handle. Idempotent.
	Close() error
}

// DocInfo identifies the bound document.
type DocInfo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// EventSource is implemented by interactive runtimes that push page-side
// events (node clicked in select mode, node hovered in inspect mode) back to
// the engine. The channel closes when the runtime closes.
type EventSource interface {
	Events() <-chan Event
}

// EventKind discriminates page-side interaction events.
type EventKind string

const (
	// EventToggle reports a click on a node while select or style listeners
	// are installed; the engine toggles the node's selection membership.
	EventToggle EventKind = "toggle"

	// EventHover reports a hover while inspect listeners are installed. The
	// overlay is drawn page-side; the event is informational.
	EventHover EventKind = "hover"
)

// Event is one page-side interaction, carrying the canonical address of the
// node it happened on.
type Event struct {
	Kind    EventKind `json:"kind"`
	Address string    `json:"address"`
	Tag     string    `json:"tag"`
	Text    string    `json:"text,omitempty"`
}
