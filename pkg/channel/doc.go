/*
Package channel implements the command channel between callers and the CAD host.

A Channel owns at most one transport connection, dialed lazily on the first
Send and reused afterwards. Many callers may Send concurrently: writes are
serialized so frames never interleave, while replies are matched back to their
caller through a pending request table keyed by a monotonic request id.

# Failure model

Every Send resolves exactly once, with one of:

  - the host result;
  - a HostRejected channel error carrying the host message;
  - a TimedOut channel error, after which a late reply is silently dropped;
  - a Disconnected channel error, when the connection is lost or closed;
  - the context error, when the caller gives up.

The channel never retries. A request that timed out may still complete on the
host: there is no way to abort it remotely, and its late reply is discarded.
Callers that want to retry must resend (with a new id) an operation that is
safe to repeat.
*/
package channel
