// Package ui is the navigation state machine of the panel.
// Screens are flat: MainMenu, PerformanceMetrics, MediaControls.
// Machine is driven by tick loop: one Run per tick after input sampling.
package ui

import (
	"fmt"
	"strings"

	"github.com/temoto/hwmon-panel/hardware/button"
	"github.com/temoto/hwmon-panel/hardware/touch"
	"github.com/temoto/hwmon-panel/internal/telemetry"
	"github.com/temoto/hwmon-panel/log2"
)

// Display draws layout. Render errors never change machine state.
type Display interface {
	Render(*Layout) error
}

// Buttons is pull-and-clear access to button edges.
type Buttons interface {
	Take(button.Button) bool
}

// Input is everything sampled this tick.
type Input struct {
	Touch   touch.Sample
	Buttons Buttons
}

type Config struct {
	Width   int
	Height  int
	Pairing string // MainMenu QR content, empty to skip
}

type Machine struct {
	Log      *log2.Log
	OnAction func(action string) // media button clicks

	regs    *telemetry.Registers
	display Display
	width   int
	height  int
	pairing string

	screen  Screen // atomic
	request Screen // atomic, single slot

	// owned by tick loop
	layout      *Layout
	perf        *perfHandles
	lastSnap    telemetry.Snapshot
	touchDown   bool
	touchTarget *Button
	dirty       bool

	XXX_testHook func(Screen)
}

type perfHandles struct {
	clock, power, tempA, tempB, network *Label
	usageA, usageB, quantity            *Bar
}

func NewMachine(c Config, regs *telemetry.Registers, display Display, log *log2.Log) *Machine {
	if c.Width == 0 {
		c.Width = DefaultWidth
	}
	if c.Height == 0 {
		c.Height = DefaultHeight
	}
	return &Machine{
		Log:     log,
		regs:    regs,
		display: display,
		width:   c.Width,
		height:  c.Height,
		pairing: c.Pairing,
	}
}

// Start enters MainMenu. Run before Start drops requests.
func (self *Machine) Start() {
	self.takeRequest()
	self.enter(ScreenMainMenu)
	self.render()
}

// Layout is current widget tree. Only valid on tick loop goroutine.
func (self *Machine) Layout() *Layout { return self.layout }

// Run performs one tick: translate input, per screen work, then pending navigation.
// Never fails, always returns handled=true.
func (self *Machine) Run(in Input) bool {
	if self.layout == nil {
		self.transition()
		return true
	}
	self.handleTouch(in.Touch)
	self.handleButtons(in.Buttons)
	self.run(self.Screen())
	self.transition()
	self.render()
	return true
}

// Touch click is press then release inside the same button.
// Release without preceding press on this screen does nothing.
func (self *Machine) handleTouch(s touch.Sample) {
	x, y := int(s.X), int(s.Y)
	if s.Pressed {
		if !self.touchDown {
			self.touchDown = true
			self.touchTarget = self.layout.Hit(x, y)
		}
		return
	}
	if !self.touchDown {
		return
	}
	target := self.touchTarget
	self.touchDown = false
	self.touchTarget = nil
	if target != nil && target.Contains(x, y) {
		self.click(target)
	}
}

func (self *Machine) handleButtons(bs Buttons) {
	if bs == nil {
		return
	}
	// take every edge this tick so presses don't leak into other screens
	var pressed [button.Count]bool
	for i := range pressed {
		pressed[i] = bs.Take(button.Button(i))
	}

	if pressed[button.Back] {
		self.Request(ScreenMainMenu)
	}
	switch self.Screen() {
	case ScreenMainMenu:
		if pressed[button.Prev] {
			self.layout.MoveFocus(-1)
			self.dirty = true
		}
		if pressed[button.Next] {
			self.layout.MoveFocus(+1)
			self.dirty = true
		}
		if pressed[button.Select] {
			if b := self.layout.Focused(); b != nil {
				self.click(b)
			}
		}

	case ScreenMediaControls:
		if pressed[button.Prev] {
			self.action("previous")
		}
		if pressed[button.Select] {
			self.action("play-pause")
		}
		if pressed[button.Next] {
			self.action("next")
		}
	}
}

func (self *Machine) click(b *Button) {
	self.Log.Debugf("ui click %s", b.Name)
	if b.Target != ScreenInvalid {
		self.Request(b.Target)
	}
	if b.Action != "" {
		self.action(b.Action)
	}
}

func (self *Machine) action(a string) {
	self.Log.Infof("ui media action=%s", a)
	if self.OnAction != nil {
		self.OnAction(a)
	}
}

// projectPerf copies register snapshot onto performance widgets.
// Missing handles make it a no-op.
func (self *Machine) projectPerf(force bool) {
	h := self.perf
	if h == nil || self.regs == nil {
		return
	}
	snap := self.regs.Snapshot()
	if !force && snap == self.lastSnap {
		return
	}
	self.lastSnap = snap

	sc, net, us := snap.Scalar, snap.Network, snap.Usage
	// never written registers show placeholder instead of zero
	scalar := snap.Seen(telemetry.KindScalar)
	setText(h.clock, orNone(scalar, "%d MHz", sc.ClockMHz))
	setText(h.power, orNone(scalar, "%d W", sc.PowerWatts))
	setText(h.tempA, orNone(scalar, "CPU %d C", sc.TempA))
	setText(h.tempB, orNone(scalar, "GPU %d C", sc.TempB))
	setText(h.network, orNone(snap.Seen(telemetry.KindNetwork), "down %d kbit/s  up %d kbit/s", net.DownBitsPerSec, net.UpBitsPerSec))
	if h.usageA != nil {
		h.usageA.SetUint32(us.UsagePctA)
	}
	if h.usageB != nil {
		h.usageB.SetUint32(us.UsagePctB)
	}
	if h.quantity != nil {
		h.quantity.SetUint32(us.Quantity)
	}
	self.dirty = true
}

const placeholder = "--"

// orNone formats uint32 fields or, when !seen, puts placeholder in their place.
func orNone(seen bool, format string, fields ...uint32) string {
	args := make([]interface{}, len(fields))
	for i, f := range fields {
		if seen {
			args[i] = f
		} else {
			args[i] = placeholder
		}
	}
	if !seen {
		format = strings.ReplaceAll(format, "%d", "%s")
	}
	return fmt.Sprintf(format, args...)
}

func setText(l *Label, s string) {
	if l != nil {
		l.Text = s
	}
}

func (self *Machine) render() {
	if !self.dirty || self.layout == nil {
		return
	}
	self.dirty = false
	if self.display == nil {
		return
	}
	if err := self.display.Render(self.layout); err != nil {
		self.Log.Errorf("ui render screen=%s err=%v", self.layout.Screen, err)
	}
}
