// Package journal implements the append-only message log that is the relay's
// single source of truth. Every message accepted by the relay is recorded
// here as an Event with a gapless, strictly increasing sequence number, and
// made durable before the sender is acknowledged. Derived state (the mention
// graph and centrality scores) is always recomputed from a journal snapshot.
package journal
