// Package api implements the subscription server: websocket endpoints for
// dashboard subscribers (full snapshot on connect, incremental frames after)
// and JSON endpoints for status and device listings.
package api
