//go:build !vkdebug

package vkcompute

// Invariant checks compile to nothing outside -tags vkdebug builds.
func assertf(bool, string, ...any) {}
