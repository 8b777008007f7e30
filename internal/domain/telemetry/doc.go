// Package telemetry contains core domain types for the monitoring business logic.
//
// It defines Reading (one sensor sample), DeviceState (the latest reading plus
// derived alert classification), AlertKind (the classification enum) and Frame
// (the wire shape delivered to subscribers).
package telemetry
