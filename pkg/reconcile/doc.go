/*
Package reconcile implements the load and save paths of the persistence protocol.

On load (Hydrate), an explicit state machine decides whether to trust the remote
snapshot, the local snapshot, or neither:

	FetchRemote -> ReadLocal -> ValidateHash -> Select
	    -> Loaded-Fresh | Loaded-Reconciled | Loaded-Cleared

A snapshot whose flow hash differs from the current graph is never resumed, and
the local copy is discarded. When both stores hold a valid snapshot the one with
the larger UpdatedAt wins, ties going to the remote. Timestamps come from two
independent clocks, so a skewed clock can make a genuinely later edit lose.

On save (Plan, Persist), the strategy and the guest policy decide which stores
receive the snapshot. Persistence failures are logged and reported, never
returned: the conversation proceeds with degraded durability.
*/
package reconcile
