// Package check implements internal invariant assertions.
//
// A failed check means an earlier compiler pass produced something it
// must never produce. It is not an input error and is never recovered:
// the failure is logged and the goroutine panics with *Error.
// Checks compile to nothing with the release build tag.
package check

import (
	"fmt"

	"tlog.app/go/loc"
	"tlog.app/go/tlog"
)

type (
	Error struct {
		Msg  string
		Inst string

		PC loc.PC
	}
)

// Assert fails with the formatted message if cond is false.
func Assert(cond bool, format string, args ...any) {
	if !Enabled || cond {
		return
	}

	fail(loc.Caller(1), "", fmt.Sprintf(format, args...))
}

// Fail reports a failed check on behalf of the caller skip frames up.
// inst is the textual form of the offending instruction, if any.
func Fail(skip int, inst, msg string) {
	if !Enabled {
		return
	}

	fail(loc.Caller(skip+1), inst, msg)
}

func fail(pc loc.PC, inst, msg string) {
	e := &Error{Msg: msg, Inst: inst, PC: pc}

	_, file, line := pc.NameFileLine()

	tlog.Printw("ASSERT", "inst", inst, "msg", msg, "file", file, "line", line)

	panic(e)
}

// Catch runs f and returns the check failure it panicked with.
// Any other panic is passed through.
func Catch(f func()) (e *Error) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}

		var ok bool
		if e, ok = p.(*Error); !ok {
			panic(p)
		}
	}()

	f()

	return nil
}

func (e *Error) Error() string {
	_, file, line := e.PC.NameFileLine()

	if e.Inst == "" {
		return fmt.Sprintf("%s:%d: %s", file, line, e.Msg)
	}

	return fmt.Sprintf("%s\n%s:%d: %s", e.Inst, file, line, e.Msg)
}
