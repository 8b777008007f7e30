// Package sensor implements a simulated sensor node for demos and end-to-end
// testing: it publishes readings over MQTT the way the field hardware does,
// cycling through normal, too-hot and too-cold phases.
package sensor
