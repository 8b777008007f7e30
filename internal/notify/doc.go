// Package notify turns alert transitions into one-shot human-readable
// notifications behind a pluggable Sink (SMS modem, log, test double).
package notify
