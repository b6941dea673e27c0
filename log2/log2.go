// Package log2 is a leveled wrapper around stdlib log.
// Nil *Log is valid and discards everything, components never check for it.
// Level may be changed concurrently with logging.
package log2

import (
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strings"
	"sync/atomic"
	"testing"
)

const (
	// type specified here helped against accidentally passing flags as level
	Lmicroseconds     int = log.Lmicroseconds
	Lshortfile        int = log.Lshortfile
	LStdFlags         int = log.Ltime | Lshortfile
	LInteractiveFlags int = log.Ltime | Lshortfile | Lmicroseconds
	LServiceFlags     int = Lshortfile // journald adds time
	LTestFlags        int = Lshortfile | Lmicroseconds
)

type Level int32

const (
	LError Level = iota
	LInfo
	LDebug
	LAll = math.MaxInt32
)

type FmtFunc func(format string, args ...interface{})

type Log struct {
	l      *log.Logger
	level  *int32 // shared with Named children
	fatalf FmtFunc
}

func NewStderr(level Level) *Log { return NewWriter(os.Stderr, level) }

func NewWriter(w io.Writer, level Level) *Log {
	if w == io.Discard {
		return nil
	}
	lv := int32(level)
	return &Log{l: log.New(w, "", LStdFlags|log.Lmsgprefix), level: &lv}
}

// NewTest logs via t.Logf and fails test on Fatal.
func NewTest(t testing.TB, level Level) *Log {
	self := NewWriter(testWriter{t}, level)
	self.SetFlags(LTestFlags)
	self.fatalf = t.Fatalf
	return self
}

type testWriter struct{ t testing.TB }

func (self testWriter) Write(b []byte) (int, error) {
	// t.Logf adds its own newline
	self.t.Logf("%s", strings.TrimSuffix(string(b), "\n"))
	return len(b), nil
}

// Named returns child log with "name: " message prefix.
// Level is shared with parent, flags are copied.
func (self *Log) Named(name string) *Log {
	if self == nil {
		return nil
	}
	l := log.New(self.l.Writer(), self.l.Prefix()+name+": ", self.l.Flags())
	return &Log{l: l, level: self.level, fatalf: self.fatalf}
}

func (self *Log) SetLevel(l Level) {
	if self == nil {
		return
	}
	atomic.StoreInt32(self.level, int32(l))
}

func (self *Log) SetFlags(f int) {
	if self == nil {
		return
	}
	self.l.SetFlags(f | log.Lmsgprefix)
}

func (self *Log) Enabled(level Level) bool {
	if self == nil {
		return false
	}
	return atomic.LoadInt32(self.level) >= int32(level)
}

func (self *Log) output(level Level, s string) {
	if self.Enabled(level) {
		_ = self.l.Output(3, s)
	}
}

func (self *Log) Error(args ...interface{}) { self.output(LError, "error: "+fmt.Sprint(args...)) }
func (self *Log) Errorf(format string, args ...interface{}) {
	self.output(LError, "error: "+fmt.Sprintf(format, args...))
}
func (self *Log) Info(args ...interface{}) { self.output(LInfo, fmt.Sprint(args...)) }
func (self *Log) Infof(format string, args ...interface{}) {
	self.output(LInfo, fmt.Sprintf(format, args...))
}
func (self *Log) Debug(args ...interface{}) { self.output(LDebug, "debug: "+fmt.Sprint(args...)) }
func (self *Log) Debugf(format string, args ...interface{}) {
	self.output(LDebug, "debug: "+fmt.Sprintf(format, args...))
}

func (self *Log) Fatalf(format string, args ...interface{}) {
	if self != nil && self.fatalf != nil {
		self.fatalf(format, args...)
		return
	}
	self.output(LError, "fatal: "+fmt.Sprintf(format, args...))
	os.Exit(1)
}
func (self *Log) Fatal(args ...interface{}) { self.Fatalf("%s", fmt.Sprint(args...)) }
