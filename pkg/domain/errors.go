package domain

import "errors"

// ErrNodeNotFound is returned when a node ID does not resolve in the graph.
var ErrNodeNotFound = errors.New("node not found")

// ErrEdgeNotFound is returned when an edge ID does not resolve in the graph.
var ErrEdgeNotFound = errors.New("edge not found")

// ErrUnknownNodeType is returned when a node type is not present in the catalog.
var ErrUnknownNodeType = errors.New("unknown node type")

// ErrMissingConfig is returned when a required config field is empty before dispatch.
var ErrMissingConfig = errors.New("missing required config")

// ErrSnapshotNotFound is returned when no graph snapshot is stored under a key.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrAlreadyRunning is returned by Start while a run is active. State is left untouched.
var ErrAlreadyRunning = errors.New("workflow already running")

// ErrTriggerNotArmed is returned by CheckNow for a node that holds no armed
// trigger, including one whose handshake is still in flight.
var ErrTriggerNotArmed = errors.New("trigger not armed")
