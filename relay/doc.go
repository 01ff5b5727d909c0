// Package relay implements the relay agent, the background context that owns
// the transfer flags.
//
// The agent holds two independent flags, awaiting-read and awaiting-write,
// because a read and a write can both be wanted at once. Intents from the
// caller side raise a flag. A completion from the coordinating loop clears
// it. Every change is published as a message.State, and the state is
// re-published on each cadence tick while any flag is set. A loop that could
// not service a flag (for example because the transport is not open yet)
// is therefore driven again on the next tick. That is backpressure, not
// failure.
//
// Flags clear only when the loop reports completion, not when the state is
// published, so a flag is never seen false while its transfer is unserviced.
package relay
