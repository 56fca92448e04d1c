/*
Package ports defines the driven ports (interfaces) for the chatflow engine.

These interfaces decouple the reconciliation protocol from concrete storage, so
the same session logic runs against browser-like key-value stores, files,
SQLite, Redis, DynamoDB or Postgres.

# Key Interfaces

  - LocalStore: synchronous string key-value persistence (snapshots, identity pointers).
  - RemoteStore: optional asynchronous snapshot store keyed by user (scoped to the scenario).
  - KeyLister / RemoteDeleter: optional capabilities used by tooling.

The contract suites in this package (RunLocalStoreContract, RunRemoteStoreContract)
are meant to be called from each adapter's tests.
*/
package ports
