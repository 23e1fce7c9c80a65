/*
Package domain contains the core types shared by the Docket document system.

It defines the contracts that application state must satisfy and the values
that flow through dispatch. This package is kept pure and free of external
I/O, following Hexagonal Architecture principles: persistence, transport and
presentation live in adapters that depend on it, never the other way around.

# Key Entities

  - Model: Opaque application state. The only required capability is a
    textual summary (String).
  - Action: A {type, payload} request describing a state change.
  - Snapshot: A serialized copy of every store's model, used by persistence
    adapters.
  - LifecycleHooks: Observability callbacks fired on dispatch and mutation.
*/
package domain
