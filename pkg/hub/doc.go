// Package hub implements the real-time connection registry and event
// fan-out for delivery tracking clients.
//
// One serving goroutine owns all registry and subscription state. Every
// mutation reaches it through a single work queue: inbound client
// commands are enqueued by their connection's read pump, and write-path
// services hand events over through the Bridge. Snapshots returned to
// callers are always copies, so a disconnect during a broadcast can
// never corrupt iteration.
//
// Delivery is best effort. There is no retry, no buffering beyond each
// connection's send buffer, and no ordering guarantee across recipients
// of the same broadcast. A recipient that is unreachable at resolution
// time is skipped.
package hub
