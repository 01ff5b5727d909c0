// Package transport holds the single open connection to the serial device.
//
// An Owner is the only holder of the Connection Handle (the open Port). Read
// and Write suspend until the device completes them, and at most one of each
// may be outstanding. Nothing else in the bridge touches the Port directly.
package transport
