// Package message defines the units exchanged between the bridge's execution
// contexts, and the one-way ports that carry them.
//
// Every context (relay agent, coordinating loop, gateway, caller) runs on its
// own goroutine and shares no mutable memory with the others. A value posted
// to a Port is cloned through CBOR before the receiver sees it, the same
// structured-clone contract a browser message channel gives.
//
// Every message carries an ID. The gateway matches a delivered Envelope to the
// parked request with the same ID, so two quick reads can never be confused.
package message
