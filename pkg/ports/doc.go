/*
Package ports defines the driven ports (interfaces) of the weft engine.

These interfaces decouple the execution core from external implementations,
allowing the engine to work with any capability adapter and storage backend.

# Key Interfaces

  - Action: A one-shot capability adapter (send a message, upload a file, wait).
  - Trigger: A long-running capability adapter that emits items until stopped.
  - Handle: The long-running handle returned by a Trigger (Stop, optional CheckNow).
  - SnapshotStore: Persists and restores serialized graph snapshots.
*/
package ports
