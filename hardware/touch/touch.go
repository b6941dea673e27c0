// Package touch samples a capacitive touch controller (FT6x06 family) over I2C.
// One sample is at most five single byte register reads, each bounded by timeout.
package touch

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/hwmon-panel/log2"
	"periph.io/x/periph/conn"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"
)

const (
	DefaultAddress = 0x38
	DefaultTimeout = 5 * time.Millisecond

	regStatus = 0x02
	regXH     = 0x03
	regXL     = 0x04
	regYH     = 0x05
	regYL     = 0x06

	statusPointsMask = 0x0f
	maxPoints        = 2 // more is invalid, e.g. 0x0f after reset
	eventMask        = 0xc0
	eventShift       = 6
	coordHighMask    = 0x0f
)

// Event is per-point event flag reported in XH register.
type Event uint8

const (
	EventPressDown Event = iota
	EventLiftUp
	EventContact
	EventNone
)

func (e Event) String() string {
	switch e {
	case EventPressDown:
		return "press-down"
	case EventLiftUp:
		return "lift-up"
	case EventContact:
		return "contact"
	case EventNone:
		return "none"
	}
	return fmt.Sprintf("Event(%d)", e)
}

// Sample is one tick of touch input.
// When Pressed is false, X,Y hold last coordinates seen while pressed (0,0 initially).
type Sample struct {
	X       uint16
	Y       uint16
	Pressed bool
	Event   Event
}

func (s Sample) String() string {
	return fmt.Sprintf("x=%d y=%d pressed=%t event=%s", s.X, s.Y, s.Pressed, s.Event)
}

// Bus is the request/response transaction, periph conn.Conn satisfies it.
type Bus interface {
	Tx(w, r []byte) error
}

var _ Bus = conn.Conn(nil)

type Stat struct {
	Samples uint32
	Pressed uint32
	Errors  uint32
}

type Poller struct {
	Log   *log2.Log
	bus   Bus
	lastX uint16
	lastY uint16
	stat  Stat
}

// NewPoller wraps bus with per transaction timeout. Zero timeout means DefaultTimeout.
func NewPoller(bus Bus, timeout time.Duration, log *log2.Log) *Poller {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Poller{
		Log: log,
		bus: NewBoundedBus(bus, timeout),
	}
}

// Open initializes periph host drivers and opens I2C device addr on named bus.
// Empty busName opens first available bus.
func Open(busName string, addr uint16, timeout time.Duration, log *log2.Log) (*Poller, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, errors.Annotate(err, "periph/init")
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, errors.Annotatef(err, "I2C Open bus=%s", busName)
	}
	if addr == 0 {
		addr = DefaultAddress
	}
	dev := &i2c.Dev{Bus: bus, Addr: addr}
	return NewPoller(dev, timeout, log), bus, nil
}

// Sample reads controller state. Bus failure means no touch this tick, never fatal.
func (self *Poller) Sample() Sample {
	atomic.AddUint32(&self.stat.Samples, 1)
	s, err := self.read()
	if err != nil {
		atomic.AddUint32(&self.stat.Errors, 1)
		self.Log.Debugf("touch sample err=%v", err)
		return Sample{X: self.lastX, Y: self.lastY, Event: EventNone}
	}
	if s.Pressed {
		atomic.AddUint32(&self.stat.Pressed, 1)
		self.lastX, self.lastY = s.X, s.Y
	}
	return s
}

func (self *Poller) Stat() Stat {
	return Stat{
		Samples: atomic.LoadUint32(&self.stat.Samples),
		Pressed: atomic.LoadUint32(&self.stat.Pressed),
		Errors:  atomic.LoadUint32(&self.stat.Errors),
	}
}

func (self *Poller) read() (Sample, error) {
	status, err := self.readReg(regStatus)
	if err != nil {
		return Sample{}, err
	}
	points := status & statusPointsMask
	if points == 0 || points > maxPoints {
		if points != 0 {
			self.Log.Debugf("touch invalid status=%02x", status)
		}
		return Sample{X: self.lastX, Y: self.lastY, Event: EventNone}, nil
	}

	var regs [4]byte
	for i, r := range [4]byte{regXH, regXL, regYH, regYL} {
		if regs[i], err = self.readReg(r); err != nil {
			return Sample{}, err
		}
	}
	s := Sample{
		X:       Coord(regs[0], regs[1]),
		Y:       Coord(regs[2], regs[3]),
		Pressed: true,
		Event:   Event((regs[0] & eventMask) >> eventShift),
	}
	return s, nil
}

func (self *Poller) readReg(reg byte) (byte, error) {
	var buf [1]byte
	if err := self.bus.Tx([]byte{reg}, buf[:]); err != nil {
		return 0, errors.Annotatef(err, "touch read reg=%02x", reg)
	}
	return buf[0], nil
}

// Coord combines low nibble of high register with low register.
func Coord(high, low byte) uint16 {
	return uint16(high&coordHighMask)<<8 | uint16(low)
}

// Manual is a touch source set from bench console. Safe for concurrent use.
type Manual struct {
	mu sync.Mutex
	s  Sample
}

func NewManual() *Manual { return &Manual{s: Sample{Event: EventNone}} }

func (self *Manual) Press(x, y uint16) {
	self.mu.Lock()
	self.s = Sample{X: x, Y: y, Pressed: true, Event: EventContact}
	self.mu.Unlock()
}

// Release keeps last coordinates.
func (self *Manual) Release() {
	self.mu.Lock()
	self.s.Pressed = false
	self.s.Event = EventNone
	self.mu.Unlock()
}

func (self *Manual) Sample() Sample {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.s
}
