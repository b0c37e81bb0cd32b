package assert

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// Assert panics with the caller's file and line when condition is false.
// The first optional argument is a format string for the rest.
func Assert(condition bool, args ...any) {
	if condition {
		return
	}

	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "unknown"
		line = 0
	}
	filename := filepath.Base(file)

	if len(args) > 0 {
		format, _ := args[0].(string)
		message := fmt.Sprintf(format, args[1:]...)
		panic(fmt.Sprintf("assertion failed: %s at %s:%d", message, filename, line))
	}
	panic(fmt.Sprintf("assertion failed at %s:%d", filename, line))
}

func NoError(err error) {
	Assert(err == nil, "expected no error, got: %v", err)
}
