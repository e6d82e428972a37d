//go:build vkdebug

package vkcompute

import "fmt"

// Debug builds (-tags vkdebug) verify internal invariants that indicate
// programming errors in collaborators, such as null handles passed where
// a valid one is required. Release builds compile these away.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
