package ui

import (
	"fmt"
	"sync/atomic"

	"github.com/juju/errors"
)

type Screen uint32

const (
	ScreenInvalid Screen = iota // also "no request pending"
	ScreenMainMenu
	ScreenPerformanceMetrics
	ScreenMediaControls
)

var screenNames = [...]string{"invalid", "main-menu", "performance", "media"}

func (s Screen) String() string {
	if int(s) < len(screenNames) {
		return screenNames[s]
	}
	return fmt.Sprintf("Screen(%d)", s)
}

func (s Screen) Valid() bool { return s >= ScreenMainMenu && s <= ScreenMediaControls }

func ParseScreen(s string) (Screen, error) {
	for i, name := range screenNames {
		if Screen(i).Valid() && name == s {
			return Screen(i), nil
		}
	}
	return ScreenInvalid, errors.NotValidf("screen=%q", s)
}

func (self *Machine) Screen() Screen       { return Screen(atomic.LoadUint32((*uint32)(&self.screen))) }
func (self *Machine) setScreen(new Screen) { atomic.StoreUint32((*uint32)(&self.screen), uint32(new)) }

// Request records target as pending navigation, replacing any earlier pending target.
// Safe to call from any goroutine.
func (self *Machine) Request(target Screen) {
	prev := Screen(atomic.SwapUint32((*uint32)(&self.request), uint32(target)))
	if prev != ScreenInvalid && prev != target {
		self.Log.Debugf("ui request %s overwrites pending %s", target, prev)
	}
}

// Pending returns pending target without consuming it.
func (self *Machine) Pending() Screen { return Screen(atomic.LoadUint32((*uint32)(&self.request))) }

func (self *Machine) takeRequest() Screen {
	return Screen(atomic.SwapUint32((*uint32)(&self.request), uint32(ScreenInvalid)))
}

// enter builds fresh layout for s. Widgets of previous screen are dropped.
func (self *Machine) enter(s Screen) {
	self.Log.Debugf("ui enter %s", s)
	self.perf = nil
	// finger held across transition keeps touchDown, its release clicks nothing
	self.touchTarget = nil
	switch s {
	case ScreenMainMenu:
		self.layout = buildMainMenu(self.width, self.height, self.pairing)

	case ScreenPerformanceMetrics:
		self.layout = buildPerformance(self.width, self.height)
		self.perf = &perfHandles{
			clock:    self.layout.Label(WidgetClock),
			power:    self.layout.Label(WidgetPower),
			tempA:    self.layout.Label(WidgetTempA),
			tempB:    self.layout.Label(WidgetTempB),
			network:  self.layout.Label(WidgetNetwork),
			usageA:   self.layout.Bar(WidgetUsageA),
			usageB:   self.layout.Bar(WidgetUsageB),
			quantity: self.layout.Bar(WidgetQuantity),
		}
		self.projectPerf(true)

	case ScreenMediaControls:
		self.layout = buildMedia(self.width, self.height)

	default:
		panic("code error ui enter screen=" + s.String())
	}
	self.setScreen(s)
	self.dirty = true
}

// run is per screen work each tick.
func (self *Machine) run(s Screen) {
	switch s {
	case ScreenPerformanceMetrics:
		self.projectPerf(false)
	case ScreenMainMenu, ScreenMediaControls:
		// static
	}
}

// transition consumes pending request. Equal or invalid target is dropped.
func (self *Machine) transition() {
	target := self.takeRequest()
	if target == ScreenInvalid {
		return
	}
	current := self.Screen()
	switch {
	case self.layout == nil:
		self.Log.Debugf("ui request %s dropped: stale, screen not built", target)
		return
	case !target.Valid():
		self.Log.Debugf("ui request %s dropped: invalid", target)
		return
	case target == current:
		return
	}
	self.enter(target)
	self.Log.Debugf("ui %s -> %s", current, target)
	if self.XXX_testHook != nil {
		self.XXX_testHook(target)
	}
}
