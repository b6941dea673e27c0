package state

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/hwmon-panel/hardware/button"
	"github.com/temoto/hwmon-panel/hardware/display"
	"github.com/temoto/hwmon-panel/hardware/touch"
	"github.com/temoto/hwmon-panel/helpers"
	"github.com/temoto/hwmon-panel/internal/gatt"
	"github.com/temoto/hwmon-panel/internal/panel"
	"periph.io/x/periph/conn/i2c"
)

type hardware struct {
	Display struct {
		once
		d *display.Display
	}
	Touch struct {
		once
		Poller *touch.Poller
		Source panel.Toucher // bench console, takes priority over Poller
		bus    i2c.BusCloser
	}
	Buttons struct {
		once
		Poller *button.Poller
		Source button.Source
	}
	BLE struct {
		once
		Server *gatt.Server
	}
}

func (g *Global) Display() (*display.Display, error) {
	x := &g.Hardware.Display // short alias
	_ = x.do(func() error {
		if x.d != nil { // testing mode
			return nil
		}
		cfg := &g.Config.Display
		switch {
		case cfg.Framebuffer != "":
			x.d, x.err = display.NewFb(cfg.Framebuffer)
			return x.err

		default:
			g.Log.Infof("display framebuffer not configured, rendering offscreen")
			x.d = display.NewMock(image.Pt(cfg.Width, cfg.Height))
			return nil
		}
	})
	return x.d, x.err
}

// Touch returns nil,nil when touch is disabled in config.
func (g *Global) Touch() (*touch.Poller, error) {
	x := &g.Hardware.Touch
	_ = x.do(func() error {
		if x.Poller != nil { // testing mode
			return nil
		}
		cfg := &g.Config.Touch
		if !cfg.Enable {
			g.Log.Infof("touch disabled")
			return nil
		}
		x.Poller, x.bus, x.err = touch.Open(cfg.I2CBus, uint16(cfg.Address), g.Config.TouchTimeout(), g.Log.Named("touch"))
		return errors.Annotatef(x.err, "config: touch i2c_bus=%s address=%#x", cfg.I2CBus, cfg.Address)
	})
	return x.Poller, x.err
}

// Buttons source priority: gpio_chip, input_device, manual (never pressed unless set).
func (g *Global) Buttons() (*button.Poller, error) {
	x := &g.Hardware.Buttons
	_ = x.do(func() error {
		if x.Poller != nil { // testing mode
			return nil
		}
		cfg := &g.Config.Buttons
		switch {
		case cfg.GpioChip != "":
			lines, err := g.Config.ButtonLines()
			if err != nil {
				return err
			}
			src, err := button.OpenGpio(cfg.GpioChip, lines, cfg.ActiveLow)
			if err != nil {
				return errors.Annotatef(err, "config: buttons gpio_chip=%s", cfg.GpioChip)
			}
			x.Source = src

		case cfg.InputDevice != "":
			codes, err := g.Config.ButtonKeyCodes()
			if err != nil {
				return err
			}
			src, err := button.OpenInputEvent(cfg.InputDevice, codes, g.Log.Named("buttons"))
			if err != nil {
				return errors.Annotatef(err, "config: buttons input_device=%s", cfg.InputDevice)
			}
			x.Source = src

		default:
			g.Log.Infof("buttons not configured, using manual source")
			x.Source = new(button.ManualSource)
		}
		x.Poller = button.NewPoller(x.Source, g.Log.Named("buttons"))
		return nil
	})
	return x.Poller, x.err
}

// BLE returns nil,nil when radio is disabled in config.
func (g *Global) BLE() (*gatt.Server, error) {
	x := &g.Hardware.BLE
	_ = x.do(func() error {
		if !g.Config.BLE.Enable {
			g.Log.Infof("ble disabled")
			return nil
		}
		x.Server = gatt.NewServer(nil, g.Config.BLE.DeviceName, g.Log.Named("ble"))
		x.err = x.Server.Start(g.Ingest)
		return x.err
	})
	return x.Server, x.err
}

func (g *Global) closeHardware() error {
	errs := make([]error, 0, 4)
	if x := &g.Hardware.BLE; x.done() && x.Server != nil {
		errs = append(errs, x.Server.Stop())
	}
	if x := &g.Hardware.Touch; x.done() && x.bus != nil {
		errs = append(errs, x.bus.Close())
	}
	if x := &g.Hardware.Buttons; x.done() {
		if c, ok := x.Source.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	if x := &g.Hardware.Display; x.done() && x.d != nil {
		errs = append(errs, x.d.Close())
	}
	return errors.Annotate(helpers.FoldErrors(errs), "close hardware")
}

type once struct {
	sync.Mutex
	called uint32 // atomic bool
	err    error
}

func (o *once) done() bool {
	return atomic.LoadUint32(&o.called) == 1
}

func (o *once) do(f func() error) error {
	if o.done() { // fast path
		return o.err
	}
	o.Lock()
	defer o.Unlock()
	if o.done() {
		return o.err
	}
	o.err = f()
	atomic.StoreUint32(&o.called, 1)
	return o.err
}
