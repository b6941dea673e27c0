package state

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/hwmon-panel/helpers"
	"github.com/temoto/hwmon-panel/internal/panel"
	"github.com/temoto/hwmon-panel/internal/telemetry"
	"github.com/temoto/hwmon-panel/internal/ui"
	"github.com/temoto/hwmon-panel/log2"
)

type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Config       *Config
	Hardware     hardware // hardware.go
	Log          *log2.Log
	Ingest       *telemetry.Service
	UI           *ui.Machine
	Panel        *panel.Panel

	_copy_guard sync.Mutex //nolint:unused
}

const ContextKey = "run/state-global"

func NewGlobal(log *log2.Log, buildVersion string) *Global {
	return &Global{
		Alive:        alive.NewAlive(),
		BuildVersion: buildVersion,
		Log:          log,
	}
}

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

func (g *Global) Context(ctx context.Context) context.Context {
	return context.WithValue(ctx, ContextKey, g)
}

// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg
	g.Log.Infof("build version=%s", g.BuildVersion)
	if cfg.Log.Debug {
		g.Log.SetLevel(log2.LDebug)
	}

	g.Ingest = telemetry.NewService(telemetry.NewRegisters(), g.Log)

	const initTasks = 3
	wg := sync.WaitGroup{}
	wg.Add(initTasks)
	errch := make(chan error, initTasks)
	go helpers.WrapErrChan(&wg, errch, g.initDisplay)
	go helpers.WrapErrChan(&wg, errch, func() error { _, err := g.Touch(); return err })
	go helpers.WrapErrChan(&wg, errch, func() error { _, err := g.Buttons(); return err })
	wg.Wait()
	close(errch)
	if err := helpers.FoldErrChan(errch); err != nil {
		return err
	}

	d, _ := g.Display()
	g.UI = ui.NewMachine(ui.Config{
		Width:   cfg.Display.Width,
		Height:  cfg.Display.Height,
		Pairing: cfg.Pairing(),
	}, g.Ingest.Registers(), d, g.Log)
	g.UI.OnAction = func(action string) { g.Log.Infof("media action=%s", action) }

	// typed nil pointer must not reach interface
	var toucher panel.Toucher
	if g.Hardware.Touch.Source != nil {
		toucher = g.Hardware.Touch.Source
	} else if t, _ := g.Touch(); t != nil {
		toucher = t
	}
	b, _ := g.Buttons()
	g.Panel = panel.New(toucher, b, g.UI, g.Log)

	// radio failure leaves panel usable with stale registers
	if _, err := g.BLE(); err != nil {
		g.Error(err, "ble")
	}
	return nil
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	err := g.Init(ctx, cfg)
	if err != nil {
		g.Fatal(err)
	}
}

// Run enters MainMenu and ticks until Stop.
func (g *Global) Run() {
	g.UI.Start()
	g.Alive.Add(1)
	go g.Panel.Loop(g.Alive, g.Config.Tick())
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Error(err)
	}
}

func (g *Global) Fatal(err error, args ...interface{}) {
	if err != nil {
		g.Error(err, args...)
		g.StopWait(5 * time.Second)
		g.Log.Fatal(err)
		os.Exit(1)
	}
}

func (g *Global) Stop() {
	g.Alive.Stop()
}

// StopWait stops tick loop, waits for it, then releases hardware.
func (g *Global) StopWait(timeout time.Duration) bool {
	g.Alive.Stop()
	ok := false
	select {
	case <-g.Alive.WaitChan():
		ok = true
	case <-time.After(timeout):
	}
	g.Error(g.closeHardware())
	return ok
}

func (g *Global) initDisplay() error {
	d, err := g.Display()
	if d != nil {
		g.Error(d.Clear(), "display clear")
	}
	return err
}
