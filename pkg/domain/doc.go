/*
Package domain contains the core domain models for the chatflow engine.

It defines the flow graph that scripts a conversation, the persisted snapshot of a
user's progress through it, and the identity triple that scopes that snapshot.
This package is kept pure and free of I/O; storage, traversal and reconciliation
live in their own packages and depend on it.

# Key Entities

  - Node / Graph: the question nodes and the immutable mapping that links them.
  - Next: where a node leads, either a static node id or a named computed rule.
  - ChatState: the snapshot (answers, current step, message log, flow hash, timestamp).
  - Identity: the (user, scenario, session) triple that keys a snapshot.
*/
package domain
