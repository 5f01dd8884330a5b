// Package registry holds the two static lookup tables of weft: the node
// catalog used to instantiate new nodes, and the adapter registry mapping
// an executable node type to its capability adapter.
package registry
