// Package fanout distributes device-state updates from one producer to any
// number of independently-paced subscribers.
//
// Each subscriber owns a bounded queue and a delivery goroutine; full queues
// drop the oldest pending frame for that subscriber only, and send failures
// unsubscribe the failing subscriber automatically. Publish never blocks and
// never applies backpressure to the producer.
package fanout
