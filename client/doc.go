// Package client is the synchronous caller. Every call blocks until the
// gateway resolves it, so code that cannot await, such as a script, can
// still drive the serial link.
package client
