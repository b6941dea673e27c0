package button

import (
	"fmt"

	"github.com/juju/errors"
	gpio "github.com/temoto/gpio-cdev-go"
)

// GpioSource reads button lines from GPIO character device.
// Lines are in Button order.
type GpioSource struct {
	lines     gpio.Lineser
	activeLow bool
	label     string
}

var _ Source = new(GpioSource)

func NewGpioSource(lines gpio.Lineser, activeLow bool) *GpioSource {
	return &GpioSource{lines: lines, activeLow: activeLow, label: "gpio"}
}

// OpenGpio requests Count input lines on chip, e.g. /dev/gpiochip0.
func OpenGpio(chipPath string, offsets []uint32, activeLow bool) (*GpioSource, error) {
	if len(offsets) != Count {
		return nil, errors.NotValidf("button lines=%v expected %d", offsets, Count)
	}
	chip, err := gpio.Open(chipPath, "hwmon-panel")
	if err != nil {
		return nil, errors.Annotatef(err, "gpio open chip=%s", chipPath)
	}
	lines, err := chip.OpenLines(gpio.GPIOHANDLE_REQUEST_INPUT, "hwmon-panel-buttons", offsets...)
	if err != nil {
		chip.Close()
		return nil, errors.Annotatef(err, "gpio open lines=%v", offsets)
	}
	s := NewGpioSource(lines, activeLow)
	s.label = fmt.Sprintf("gpio:%s%v", chipPath, offsets)
	return s, nil
}

func (self *GpioSource) String() string { return self.label }

func (self *GpioSource) Levels() (Levels, error) {
	var ls Levels
	data, err := self.lines.Read()
	if err != nil {
		return ls, errors.Annotate(err, "gpio read")
	}
	for i := range ls {
		high := data.Values[i] != 0
		ls[i] = high != self.activeLow
	}
	return ls, nil
}

func (self *GpioSource) Close() error { return self.lines.Close() }
