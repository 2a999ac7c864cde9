// Package graph defines the shared scene graph for Exoform.
// The scene is a DAG of CSG nodes owned by a single room; it is mutated
// only by applying events, and unreachable nodes are reaped by a
// reachability pass from the root after every applied event.
package graph
