// Package monitor assembles the monitoring pipeline (transport, ingestion,
// registry, fan-out, subscription server) for the coldwatch-monitor binary.
package monitor
