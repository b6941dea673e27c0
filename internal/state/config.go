package state

import (
	"io/fs"
	"sync"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/hwmon-panel/hardware/button"
	"github.com/temoto/hwmon-panel/hardware/touch"
	"github.com/temoto/hwmon-panel/helpers"
	"github.com/temoto/hwmon-panel/internal/gatt"
	"github.com/temoto/hwmon-panel/internal/ui"
	"github.com/temoto/hwmon-panel/log2"
)

const DefaultTick = 16 * time.Millisecond

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	TickMs int `hcl:"tick_ms"`

	Touch struct {
		Enable    bool   `hcl:"enable"`
		I2CBus    string `hcl:"i2c_bus"`
		Address   int    `hcl:"address"`
		TimeoutMs int    `hcl:"timeout_ms"`
	} `hcl:"touch"`

	Buttons struct {
		GpioChip    string         `hcl:"gpio_chip"`
		Lines       []int          `hcl:"lines"`
		ActiveLow   bool           `hcl:"active_low"`
		InputDevice string         `hcl:"input_device"`
		KeyCodes    map[string]int `hcl:"key_codes"`
	} `hcl:"buttons"`

	Display struct {
		Framebuffer string `hcl:"framebuffer"`
		Width       int    `hcl:"width"`
		Height      int    `hcl:"height"`
	} `hcl:"display"`

	BLE struct {
		Enable     bool   `hcl:"enable"`
		DeviceName string `hcl:"device_name"`
	} `hcl:"ble"`

	Log struct {
		Debug bool `hcl:"debug"`
	} `hcl:"log"`

	_copy_guard sync.Mutex //nolint:unused
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

func (c *Config) Tick() time.Duration {
	return helpers.IntMillisecondDefault(c.TickMs, DefaultTick)
}

func (c *Config) TouchTimeout() time.Duration {
	return helpers.IntMillisecondDefault(c.Touch.TimeoutMs, touch.DefaultTimeout)
}

// ButtonLines returns gpio offsets in button order.
func (c *Config) ButtonLines() ([]uint32, error) {
	if len(c.Buttons.Lines) != button.Count {
		return nil, errors.NotValidf("config buttons.lines=%v expected %d lines (back prev next select)", c.Buttons.Lines, button.Count)
	}
	ls := make([]uint32, len(c.Buttons.Lines))
	for i, l := range c.Buttons.Lines {
		if l < 0 {
			return nil, errors.NotValidf("config buttons.lines[%d]=%d", i, l)
		}
		ls[i] = uint32(l)
	}
	return ls, nil
}

// ButtonKeyCodes merges buttons.key_codes over default key map.
func (c *Config) ButtonKeyCodes() (map[button.Button]uint16, error) {
	m := make(map[button.Button]uint16, button.Count)
	for b, code := range button.DefaultKeyCodes {
		m[b] = code
	}
	for name, code := range c.Buttons.KeyCodes {
		b, err := button.ParseButton(name)
		if err != nil {
			return nil, errors.Annotate(err, "config buttons.key_codes")
		}
		if code <= 0 || code > 0xffff {
			return nil, errors.NotValidf("config buttons.key_codes %s=%d", name, code)
		}
		m[b] = uint16(code)
	}
	return m, nil
}

// Pairing is MainMenu QR content.
func (c *Config) Pairing() string {
	return c.BLE.DeviceName + "\n" + gatt.ServiceUUIDString
}

func (c *Config) applyDefaults() {
	if c.Touch.Address == 0 {
		c.Touch.Address = touch.DefaultAddress
	}
	if c.Display.Width == 0 {
		c.Display.Width = ui.DefaultWidth
	}
	if c.Display.Height == 0 {
		c.Display.Height = ui.DefaultHeight
	}
	if c.BLE.DeviceName == "" {
		c.BLE.DeviceName = gatt.DefaultDeviceName
	}
}

func (c *Config) validate() []error {
	var errs []error
	if c.TickMs < 0 {
		errs = append(errs, errors.NotValidf("config tick_ms=%d", c.TickMs))
	}
	if c.Touch.Address < 0 || c.Touch.Address > 0x7f {
		errs = append(errs, errors.NotValidf("config touch.address=%#x", c.Touch.Address))
	}
	if c.Touch.TimeoutMs < 0 {
		errs = append(errs, errors.NotValidf("config touch.timeout_ms=%d", c.Touch.TimeoutMs))
	}
	if c.Buttons.GpioChip != "" {
		if _, err := c.ButtonLines(); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := c.ButtonKeyCodes(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (c *Config) read(log *log2.Log, cfs configFS, source ConfigSource, errs *[]error) {
	norm := cfs.normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := cfs.read(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := cfs.normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, cfs, include, errs)
	}
}

// ReadConfig merges named sources from fsys in order, later values override earlier.
func ReadConfig(log *log2.Log, fsys fs.FS, names ...string) (*Config, error) {
	return readConfig(log, configFS{fsys: fsys}, names...)
}

// ReadConfigFile reads filename from disk, includes are relative to its directory.
func ReadConfigFile(log *log2.Log, filename string) (*Config, error) {
	cfs, name := osConfigFS(filename)
	return readConfig(log, cfs, name)
}

func readConfig(log *log2.Log, cfs configFS, names ...string) (*Config, error) {
	if len(names) == 0 {
		return nil, errors.Errorf("code error ReadConfig() without names")
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, cfs, ConfigSource{Name: name}, &errs)
	}
	c.applyDefaults()
	errs = append(errs, c.validate()...)
	return c, helpers.FoldErrors(errs)
}

func MustReadConfigFile(log *log2.Log, filename string) *Config {
	c, err := ReadConfigFile(log, filename)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
