package button

import (
	"io"
	"os"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/hwmon-panel/log2"
	"github.com/temoto/inputevent-go"
)

// DefaultKeyCodes maps buttons to keys emitted by gpio-keys device tree nodes.
var DefaultKeyCodes = map[Button]uint16{
	Back:   inputevent.KEY_BACK,
	Prev:   inputevent.KEY_LEFT,
	Next:   inputevent.KEY_RIGHT,
	Select: inputevent.KEY_ENTER,
}

// InputEventSource keeps levels of keys read from Linux input event device.
// Reader goroutine updates levels, tick loop reads them via Levels().
// Key down is latched until next Levels(), so tap shorter than a tick is not lost.
type InputEventSource struct {
	Log     *log2.Log
	f       io.ReadCloser
	device  string
	codes   map[uint16]Button
	mu      sync.Mutex
	levels  Levels
	latched Levels
	err     error
}

var _ Source = new(InputEventSource)

func OpenInputEvent(device string, keyCodes map[Button]uint16, log *log2.Log) (*InputEventSource, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, errors.Annotatef(err, "input open device=%s", device)
	}
	return NewInputEventSource(f, device, keyCodes, log), nil
}

// NewInputEventSource starts reading events from r until error or Close.
func NewInputEventSource(r io.ReadCloser, device string, keyCodes map[Button]uint16, log *log2.Log) *InputEventSource {
	if keyCodes == nil {
		keyCodes = DefaultKeyCodes
	}
	self := &InputEventSource{
		Log:    log,
		f:      r,
		device: device,
		codes:  make(map[uint16]Button, len(keyCodes)),
	}
	for b, code := range keyCodes {
		self.codes[code] = b
	}
	go self.readLoop()
	return self
}

func (self *InputEventSource) String() string { return "input:" + self.device }

// Levels reports key held now or pressed since previous call.
func (self *InputEventSource) Levels() (Levels, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	ls := self.levels
	for i := range ls {
		ls[i] = ls[i] || self.latched[i]
	}
	self.latched = Levels{}
	return ls, self.err
}

func (self *InputEventSource) Close() error { return self.f.Close() }

func (self *InputEventSource) readLoop() {
	for {
		ie, err := inputevent.ReadOne(self.f)
		if err != nil {
			self.Log.Errorf("input device=%s err=%v", self.device, err)
			self.mu.Lock()
			self.err = errors.Annotatef(err, "input device=%s", self.device)
			self.mu.Unlock()
			return
		}
		if ie.Type != inputevent.EV_KEY {
			continue
		}
		b, ok := self.codes[ie.Code]
		if !ok {
			self.Log.Debugf("input device=%s unmapped key=%d", self.device, ie.Code)
			continue
		}
		// hold keeps level pressed
		pressed := ie.Value != int32(inputevent.KeyStateUp)
		self.mu.Lock()
		self.levels[b] = pressed
		if ie.Value == int32(inputevent.KeyStateDown) {
			self.latched[b] = true
		}
		self.mu.Unlock()
	}
}

// ManualSource levels are set by code, used by bench console and tests.
type ManualSource struct {
	mu     sync.Mutex
	levels Levels
}

var _ Source = new(ManualSource)

func (self *ManualSource) String() string { return "manual" }

func (self *ManualSource) Set(b Button, pressed bool) {
	self.mu.Lock()
	self.levels[b] = pressed
	self.mu.Unlock()
}

func (self *ManualSource) Levels() (Levels, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.levels, nil
}
