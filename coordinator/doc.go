// Package coordinator is the coordinating loop. It owns no request state of
// its own: it observes the transfer flags published by the relay agent,
// dispatches the matching transport operation, clears the flag, and hands
// the result to the gateway.
package coordinator
