// Package journal provides SQLite-backed durable storage for store sessions.
//
// A session is one store lifetime: the spec hash of the reducer it ran, the
// preloaded state (if any) and the hash of the state right after
// initialization. Entries are the actions that session applied, in the
// order the reducer saw them, each stamped with the hash of the state it
// produced.
//
// # Ordering
//
//   - Entries are ordered by seq INTEGER from a logical Clock, NEVER timestamps
//   - All queries include ORDER BY seq ASC, id ASC COLLATE BINARY
//   - (session_id, seq) is unique; re-appending an entry is a no-op
//
// # Recording
//
// Recorder is a store enhancer. It wraps the reducer so every successful
// non-reserved transition is appended before the store commits the new
// state: if the write fails the dispatch fails and the state is unchanged.
//
// # Replay
//
// Replay rebuilds a fresh store from a session's preloaded state, feeds it
// every entry in seq order and compares state hashes, reporting the first
// divergence.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All hashes are computed by the ir package using RFC 8785 canonical JSON
// and SHA-256 with domain separation.
package journal
