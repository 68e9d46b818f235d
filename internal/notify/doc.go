// Package notify provides NotificationSink implementations: a structured log
// sink, a NATS alert publisher, a Redis recent-alert cache, and Multi, which
// fans one notification out to several sinks.
package notify
