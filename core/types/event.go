package types

// Event is the generic structured payload surfaced to downstream observers
// (RPC streams, indexers, audit tooling). Attributes hold a flat string
// rendering of the module-specific payload.
type Event struct {
	Type       string
	Attributes map[string]string
}
