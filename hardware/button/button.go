// Package button turns button line levels into one-shot press events.
package button

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/temoto/hwmon-panel/log2"
)

type Button uint8

const (
	Back Button = iota
	Prev
	Next
	Select
	Count int = iota
)

var buttonNames = [Count]string{"back", "prev", "next", "select"}

func (b Button) String() string {
	if int(b) < Count {
		return buttonNames[b]
	}
	return fmt.Sprintf("Button(%d)", b)
}

func ParseButton(s string) (Button, error) {
	for i, name := range buttonNames {
		if name == s {
			return Button(i), nil
		}
	}
	return 0, errors.NotValidf("button=%q", s)
}

// Levels is logical pressed state of every button, index is Button.
type Levels [Count]bool

// Source reports current logical levels.
type Source interface {
	Levels() (Levels, error)
	String() string
}

// Edge is a rising edge detector with depth one queue.
// Pending is set on released->pressed transition and cleared only by Take.
// Holding a button never re-asserts.
type Edge struct {
	prev    bool
	pending bool
}

func (self *Edge) Feed(level bool) {
	if level && !self.prev {
		self.pending = true
	}
	self.prev = level
}

// Take returns pending flag and clears it.
func (self *Edge) Take() bool {
	p := self.pending
	self.pending = false
	return p
}

func (self *Edge) Pending() bool { return self.pending }

// Poller samples Source once per tick and feeds edge detectors.
// Not safe for concurrent use, owned by tick loop.
type Poller struct {
	Log    *log2.Log
	src    Source
	edges  [Count]Edge
	errors uint32
}

func NewPoller(src Source, log *log2.Log) *Poller {
	return &Poller{Log: log, src: src}
}

// Sample reads levels. On read failure all levels stay as before.
func (self *Poller) Sample() {
	if self.src == nil {
		return
	}
	levels, err := self.src.Levels()
	if err != nil {
		self.errors++
		self.Log.Debugf("button source=%s err=%v", self.src, err)
		return
	}
	for i := range self.edges {
		self.edges[i].Feed(levels[i])
	}
}

// Take pulls and clears pending press of b.
func (self *Poller) Take(b Button) bool {
	if int(b) >= Count {
		return false
	}
	return self.edges[b].Take()
}

func (self *Poller) Errors() uint32 { return self.errors }
