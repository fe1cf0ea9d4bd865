package watcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/kart-io/logger/core"
)

// recordLogger keeps structured messages so tests can assert on them.
type recordLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level string
	msg   string
}

func newRecordLogger() *recordLogger { return &recordLogger{} }

func (l *recordLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
}

func (l *recordLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}

func (l *recordLogger) Debug(args ...interface{}) { l.add("debug", fmt.Sprint(args...)) }
func (l *recordLogger) Info(args ...interface{})  { l.add("info", fmt.Sprint(args...)) }
func (l *recordLogger) Warn(args ...interface{})  { l.add("warn", fmt.Sprint(args...)) }
func (l *recordLogger) Error(args ...interface{}) { l.add("error", fmt.Sprint(args...)) }
func (l *recordLogger) Fatal(args ...interface{}) { l.add("fatal", fmt.Sprint(args...)) }

func (l *recordLogger) Debugf(t string, args ...interface{}) { l.add("debug", fmt.Sprintf(t, args...)) }
func (l *recordLogger) Infof(t string, args ...interface{})  { l.add("info", fmt.Sprintf(t, args...)) }
func (l *recordLogger) Warnf(t string, args ...interface{})  { l.add("warn", fmt.Sprintf(t, args...)) }
func (l *recordLogger) Errorf(t string, args ...interface{}) { l.add("error", fmt.Sprintf(t, args...)) }
func (l *recordLogger) Fatalf(t string, args ...interface{}) { l.add("fatal", fmt.Sprintf(t, args...)) }

func (l *recordLogger) Debugw(msg string, _ ...interface{}) { l.add("debug", msg) }
func (l *recordLogger) Infow(msg string, _ ...interface{})  { l.add("info", msg) }
func (l *recordLogger) Warnw(msg string, _ ...interface{})  { l.add("warn", msg) }
func (l *recordLogger) Errorw(msg string, _ ...interface{}) { l.add("error", msg) }
func (l *recordLogger) Fatalw(msg string, _ ...interface{}) { l.add("fatal", msg) }

func (l *recordLogger) With(...interface{}) core.Logger                     { return l }
func (l *recordLogger) WithCtx(context.Context, ...interface{}) core.Logger { return l }
func (l *recordLogger) WithCallerSkip(int) core.Logger                      { return l }
func (l *recordLogger) SetLevel(core.Level)                                 {}
func (l *recordLogger) Flush() error                                        { return nil }
