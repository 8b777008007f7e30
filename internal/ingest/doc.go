// Package ingest connects the reading transport to classification, the device
// registry and the fan-out bus, preserving per-device update ordering.
package ingest
