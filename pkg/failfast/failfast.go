// Package failfast provides small panic-on-invariant-violation helpers for
// programmer errors detected at construction time, as distinct from runtime
// errors a caller is expected to handle.
package failfast

import (
	"fmt"
	"reflect"
	"runtime/debug"
)

// Err panics if err is non-nil, with a stack trace attached for debugging.
func Err(err error) {
	if err != nil {
		panic(fmt.Errorf("fail-fast: %w\n%s", err, debug.Stack()))
	}
}

// If panics with the formatted message if condition is false.
func If(condition bool, message string, args ...interface{}) {
	if !condition {
		panic(fmt.Errorf("fail-fast: "+message, args...))
	}
}

// NotNil panics if ptr is nil, including a typed nil pointer or nil func.
func NotNil(ptr interface{}, name string) {
	if ptr == nil {
		panic(fmt.Errorf("fail-fast: %s is nil", name))
	}
	v := reflect.ValueOf(ptr)
	if v.Kind() == reflect.Ptr && v.IsNil() {
		panic(fmt.Errorf("fail-fast: %s is nil", name))
	}
	if v.Kind() == reflect.Func && v.IsNil() {
		panic(fmt.Errorf("fail-fast: %s is nil", name))
	}
}
