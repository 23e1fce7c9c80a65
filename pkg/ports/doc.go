/*
Package ports defines the driven ports (interfaces) for Docket.

These interfaces decouple documents from external implementations, allowing
the same application to persist snapshots to memory, files, Redis or a Loam
vault, and to coordinate writers across replicas.

# Key Interfaces

  - SnapshotStore: Responsible for persisting and loading document Snapshots.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
*/
package ports
