// Package config defines runtime settings used by the coldwatch binaries and
// provides helpers to load, validate and save them in YAML format.
//
// The Config type holds the HTTP listen address, the MQTT broker connection
// parameters and the classification thresholds.
package config
