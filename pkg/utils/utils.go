package utils

import (
	"fmt"
	"os"
	"runtime/debug"
)

// ToPointer returns a pointer to the given value.
func ToPointer[T any](v T) *T {
	return &v
}

// GoSafe runs fn in a goroutine and recovers from panics so a single
// misbehaving task cannot take the process down.
func GoSafe(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintf(os.Stderr, "recovered from panic: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}
