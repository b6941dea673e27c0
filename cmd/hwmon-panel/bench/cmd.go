// Bench console: drive panel by hand, ticks only on command.
package bench

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/skip2/go-qrcode"
	"github.com/temoto/hwmon-panel/cmd/hwmon-panel/subcmd"
	"github.com/temoto/hwmon-panel/hardware/button"
	"github.com/temoto/hwmon-panel/hardware/touch"
	"github.com/temoto/hwmon-panel/helpers"
	"github.com/temoto/hwmon-panel/helpers/cli"
	"github.com/temoto/hwmon-panel/internal/panel"
	"github.com/temoto/hwmon-panel/internal/state"
	"github.com/temoto/hwmon-panel/internal/telemetry"
	"github.com/temoto/hwmon-panel/internal/ui"
)

const usage = `syntax: one command per line
- write KIND HEX [OFFSET]  BLE write to characteristic, KIND: scalar network usage
- touch X Y               finger down at X,Y, then tick
- release                 finger up, then tick
- button NAME             press and release: back prev next select
- nav SCREEN              request screen: main-menu performance media
- tick [N]                run N ticks, default 1
- show                    current screen and widgets
- pair                    full screen pairing QR, until next screen update
- stat                    register and panel counters
- help
`

const stopTimeout = 5 * time.Second

var Mod = subcmd.Mod{Name: "bench", Usage: "interactive console, manual touch and buttons", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)

	src := new(button.ManualSource)
	g.Hardware.Buttons.Source = src
	g.Hardware.Buttons.Poller = button.NewPoller(src, g.Log.Named("buttons"))
	tm := touch.NewManual()
	g.Hardware.Touch.Source = tm
	config.Touch.Enable = false
	g.MustInit(ctx, config)
	g.UI.Start()

	c := NewConsole(g.Ingest, g.UI, g.Panel, src, tm, os.Stdout)
	if d, err := g.Display(); err == nil {
		c.SetPairing(d, config.Pairing())
	}
	err := cli.MainLoop(cli.Config{
		Tag: "hwmon-panel bench",
		Exec: func(line string) {
			if err := c.Exec(line); err != nil {
				g.Log.Error(errors.ErrorStack(err))
			}
		},
		Complete: c.Complete,
		OnSignal: func(os.Signal) { g.StopWait(stopTimeout) },
	})
	g.StopWait(stopTimeout)
	return errors.Annotate(err, "bench read script")
}

// QRDisplay shows full screen QR code.
type QRDisplay interface {
	QR(text string, border bool, level qrcode.RecoveryLevel) error
}

// Console drives panel p with manual inputs; p must sample src and tm.
type Console struct {
	ingest  *telemetry.Service
	machine *ui.Machine
	buttons *button.ManualSource
	touch   *touch.Manual
	panel   *panel.Panel
	qr      QRDisplay
	pairing string
	w       io.Writer
}

func NewConsole(ingest *telemetry.Service, m *ui.Machine, p *panel.Panel, src *button.ManualSource, tm *touch.Manual, w io.Writer) *Console {
	return &Console{
		ingest:  ingest,
		machine: m,
		buttons: src,
		touch:   tm,
		panel:   p,
		w:       w,
	}
}

func (self *Console) SetPairing(d QRDisplay, text string) {
	self.qr, self.pairing = d, text
}

var commands = []prompt.Suggest{
	{Text: "write", Description: "KIND HEX [OFFSET]"},
	{Text: "touch", Description: "X Y"},
	{Text: "release"},
	{Text: "button", Description: "back prev next select"},
	{Text: "nav", Description: "main-menu performance media"},
	{Text: "tick", Description: "[N]"},
	{Text: "show"},
	{Text: "pair"},
	{Text: "stat"},
	{Text: "help"},
}

func (self *Console) Complete(d prompt.Document) []prompt.Suggest {
	return prompt.FilterHasPrefix(commands, d.GetWordBeforeCursor(), true)
}

func (self *Console) Exec(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 || strings.HasPrefix(parts[0], "#") {
		return nil
	}
	cmd, args := parts[0], parts[1:]
	switch cmd {
	case "write":
		return self.write(args)

	case "touch":
		if len(args) != 2 {
			return errors.NotValidf("touch args=%v expected X Y", args)
		}
		x, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil {
			return errors.Annotate(err, "touch X")
		}
		y, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return errors.Annotate(err, "touch Y")
		}
		self.touch.Press(uint16(x), uint16(y))
		self.panel.Tick()

	case "release":
		self.touch.Release()
		self.panel.Tick()

	case "button":
		if len(args) != 1 {
			return errors.NotValidf("button args=%v", args)
		}
		b, err := button.ParseButton(args[0])
		if err != nil {
			return err
		}
		self.buttons.Set(b, true)
		self.panel.Tick()
		self.buttons.Set(b, false)
		self.panel.Tick()

	case "nav":
		if len(args) != 1 {
			return errors.NotValidf("nav args=%v", args)
		}
		s, err := ui.ParseScreen(args[0])
		if err != nil {
			return err
		}
		self.machine.Request(s)

	case "tick":
		n := 1
		if len(args) > 0 {
			var err error
			if n, err = strconv.Atoi(args[0]); err != nil || n < 0 {
				return errors.NotValidf("tick N=%s", args[0])
			}
		}
		for i := 0; i < n; i++ {
			self.panel.Tick()
		}

	case "show":
		self.show()

	case "pair":
		if self.qr == nil || self.pairing == "" {
			return errors.NotFoundf("pairing display")
		}
		return errors.Annotate(self.qr.QR(self.pairing, true, qrcode.Medium), "pair")

	case "stat":
		for _, s := range self.ingest.Registers().Stat() {
			fmt.Fprintf(self.w, "register %s accepted=%d rejected=%d updated=%s\n",
				s.Kind, s.Accepted, s.Rejected, s.Updated.Format("15:04:05.000"))
		}
		ps := self.panel.Stat()
		fmt.Fprintf(self.w, "panel ticks=%d overrun=%d\n", ps.Ticks, ps.Overrun)

	case "help":
		fmt.Fprint(self.w, usage)

	default:
		return errors.NotFoundf("command=%s", cmd)
	}
	return nil
}

func (self *Console) write(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.NotValidf("write args=%v expected KIND HEX [OFFSET]", args)
	}
	k, err := telemetry.ParseKind(args[0])
	if err != nil {
		return err
	}
	payload, err := helpers.ParseHex(args[1])
	if err != nil {
		return errors.Annotate(err, "write HEX")
	}
	offset := 0
	if len(args) == 3 {
		if offset, err = strconv.Atoi(args[2]); err != nil {
			return errors.Annotate(err, "write OFFSET")
		}
	}
	n, err := self.ingest.Write(k, payload, offset)
	if err != nil {
		return err
	}
	fmt.Fprintf(self.w, "%s accepted %d bytes: %v\n", k, n, self.ingest.Registers().Get(k).Load())
	return nil
}

func (self *Console) show() {
	l := self.machine.Layout()
	fmt.Fprintf(self.w, "screen=%s pending=%s\n", self.machine.Screen(), self.machine.Pending())
	if l == nil {
		return
	}
	lines := make([]string, 0, len(l.Buttons)+len(l.Labels)+len(l.Bars))
	focused := l.Focused()
	for _, b := range l.Buttons {
		mark := ""
		if b == focused {
			mark = " *"
		}
		lines = append(lines, fmt.Sprintf("button %s %q %v%s", b.Name, b.Text, b.Rect, mark))
	}
	for _, lb := range l.Labels {
		lines = append(lines, fmt.Sprintf("label %s %q", lb.Name, lb.Text))
	}
	for _, b := range l.Bars {
		lines = append(lines, fmt.Sprintf("bar %s %s", b.Name, b.String()))
	}
	sort.Strings(lines)
	for _, s := range lines {
		fmt.Fprintln(self.w, "  "+s)
	}
}
