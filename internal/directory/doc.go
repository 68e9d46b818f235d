// Package directory provides StoreDirectory implementations.
//
// Backend queries the REST backend's nearby-stores endpoint. Static serves a
// fixed list of stores from a YAML file, for offline runs and simulation.
// Cached wraps either one in an expiring LRU keyed by the rounded query
// centre and radius.
//
// Every implementation returns an error when the lookup fails and an empty
// slice when the area has no stores; the engine keeps its stale cache only in
// the first case.
package directory
