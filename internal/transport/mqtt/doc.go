// Package mqtt adapts the MQTT broker to the core's transport seams: a Source
// feeding decoded readings to the ingestion loop and a Publisher used by
// sensor nodes.
//
// The Client wrapper adds connection management, subscription restoration on
// reconnect and panic-safe message handling on top of paho.mqtt.golang.
package mqtt
