// Package hlc implements a hybrid logical clock: a monotonically increasing
// tick that combines wall-clock time with a logical counter, so timestamps
// stay comparable across nodes without requiring synchronized clocks.
package hlc
