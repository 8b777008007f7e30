// Package registry holds the latest known DeviceState per device id in memory.
//
// It is the only shared resource mutated by concurrent writers; a single
// RWMutex serializes updates while reads take snapshots by value.
package registry
