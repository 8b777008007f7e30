// Package classifier implements the pure threshold classification of sensor
// readings into alert kinds, including the priority rule between simultaneous
// conditions and hysteresis of the alert start timestamp.
package classifier
