/*
Package domain contains the core domain models of the weft workflow engine.

It defines the entities of the workflow graph and the execution projection
consumed by user interfaces. This package is kept pure and free of external
dependencies like I/O or persistence.

# Key Entities

  - Node: A point in the graph. Its Data.Type selects the capability adapter.
  - Edge: A directed connection between two nodes, optionally bound to handles.
  - Graph: The serializable snapshot of nodes and edges.
  - Snapshot: The read-only execution projection (run flag, per-node status, results).
*/
package domain
