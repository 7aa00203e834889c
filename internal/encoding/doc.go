// Package encoding converts source images into modern formats by shelling
// out to the crabenc binary.
//
// The Client interface hides the process boundary so the migration session
// and tests can substitute fakes. The CLI implementation stages input bytes
// into a scratch directory, runs the encoder with format-specific flags, and
// reads the converted output back, surfacing stderr on failure.
package encoding
