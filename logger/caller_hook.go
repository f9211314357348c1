package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// skippedCallers lists function prefixes that never count as the call site.
var skippedCallers = []string{
	"github.com/sirupsen/logrus",
	"datasetbuilder/logger",
}

// callerHook rewrites entry.Caller to the first frame outside logrus and the
// wrappers in this package.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 24)
	n := runtime.Callers(6, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !isSkippedCaller(frame.Function) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

func isSkippedCaller(fn string) bool {
	for _, prefix := range skippedCallers {
		if strings.Contains(fn, prefix) {
			return true
		}
	}
	return false
}
