package infra

import (
	"fmt"
	"runtime"
	"strings"
)

// PanicError is returned by Guard when the guarded function panicked.
type PanicError struct {
	Job   string
	Value any
	Where string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf(`job "%s" panics with message: %v, %s`, e.Job, e.Value, e.Where)
}

// Guard runs f and converts a panic into a *PanicError, so one failing
// job cannot take down the loop that scheduled it.
func Guard(job string, f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Job: job, Value: r, Where: identifyPanic()}
		}
	}()
	return f()
}

func identifyPanic() string {
	var name, file string
	var line int
	var pc [16]uintptr

	n := runtime.Callers(4, pc[:])
	for _, pc := range pc[:n] {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		file, line = fn.FileLine(pc)
		name = fn.Name()
		if !strings.HasPrefix(name, "runtime.") {
			break
		}
	}

	switch {
	case name != "":
		return fmt.Sprintf("%v:%v", name, line)
	case file != "":
		return fmt.Sprintf("%v:%v", file, line)
	}

	return fmt.Sprintf("pc:%x", pc)
}
