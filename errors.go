package pagelock

import "fmt"

// invariantViolation panics; it is used for conditions spec-classified as
// fatal (double-lock, registry overflow, malformed waiter chain, and
// similar). These can never be recovered from by the caller.
func invariantViolation(format string, args ...any) {
	panic(fmt.Sprintf("pagelock: invariant violation: "+format, args...))
}
