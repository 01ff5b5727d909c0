// Package gateway parks blocking requests to the synthetic /read and /write
// endpoints until the matching bytes are delivered.
//
// For each kind at most one request is pending at any instant. A second
// request of the same kind is either rejected with ErrProtocolViolation
// (PolicyReject) or queued behind the first (PolicyQueue). A queued request
// becomes pending, and its intent is announced to the Notifier, only when
// every request ahead of it has resolved.
//
// Deliveries are matched by request ID. Bytes delivered for a request that is
// no longer pending are dropped and counted as an orphan delivery.
package gateway
