// Package location provides LocationSource implementations.
//
// Push is fed by the HTTP API: a device posts fixes and polls the current
// sampling profile. NATSSource consumes JSON samples from a subject and
// announces profile changes on another. Replay plays back a recorded Track.
//
// Every source follows the same stream contract: Subscribe closes the
// previously returned channel and opens a new one, Unsubscribe closes the
// current channel. Delivery never blocks the producer; when the consumer
// falls behind, samples are dropped and counted.
package location
