// Package panel runs the fixed period tick: sample touch, sample buttons, drive ui.
package panel

import (
	"sync/atomic"
	"time"

	"github.com/temoto/alive/v2"
	"github.com/temoto/hwmon-panel/hardware/button"
	"github.com/temoto/hwmon-panel/hardware/touch"
	"github.com/temoto/hwmon-panel/internal/ui"
	"github.com/temoto/hwmon-panel/log2"
)

type Toucher interface {
	Sample() touch.Sample
}

type Buttoner interface {
	Sample()
	Take(button.Button) bool
}

type Runner interface {
	Run(ui.Input) bool
}

type Stat struct {
	Ticks   uint64
	Overrun uint64 // ticks that took longer than period
}

type Panel struct {
	Log     *log2.Log
	touch   Toucher
	buttons Buttoner
	ui      Runner
	stat    Stat
}

// New accepts nil touch, tick then sees no contact.
func New(t Toucher, b Buttoner, r Runner, log *log2.Log) *Panel {
	return &Panel{
		Log:     log,
		touch:   t,
		buttons: b,
		ui:      r,
	}
}

// Tick is one pass of the main loop.
func (self *Panel) Tick() {
	atomic.AddUint64(&self.stat.Ticks, 1)
	in := ui.Input{Touch: touch.Sample{Event: touch.EventNone}}
	if self.touch != nil {
		in.Touch = self.touch.Sample()
	}
	if self.buttons != nil {
		self.buttons.Sample()
		in.Buttons = self.buttons
	}
	self.ui.Run(in)
}

// Loop ticks every period until a stops.
func (self *Panel) Loop(a *alive.Alive, period time.Duration) {
	defer a.Done()
	tmr := time.NewTicker(period)
	defer tmr.Stop()
	stopch := a.StopChan()
	for {
		select {
		case <-tmr.C:
			begin := time.Now()
			self.Tick()
			if d := time.Since(begin); d > period {
				atomic.AddUint64(&self.stat.Overrun, 1)
				self.Log.Debugf("panel tick overrun duration=%v period=%v", d, period)
			}
		case <-stopch:
			return
		}
	}
}

func (self *Panel) Stat() Stat {
	return Stat{
		Ticks:   atomic.LoadUint64(&self.stat.Ticks),
		Overrun: atomic.LoadUint64(&self.stat.Overrun),
	}
}
