// Package script runs Starlark programs against the serial link. Scripts
// only see blocking builtins; they never observe the bridge's concurrency.
package script
