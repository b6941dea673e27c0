package ui_test

import (
	"sync"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/hwmon-panel/hardware/button"
	"github.com/temoto/hwmon-panel/hardware/touch"
	"github.com/temoto/hwmon-panel/internal/telemetry"
	"github.com/temoto/hwmon-panel/internal/ui"
	"github.com/temoto/hwmon-panel/log2"
)

type fakeDisplay struct {
	mu      sync.Mutex
	renders []ui.Screen
	err     error
}

func (d *fakeDisplay) Render(l *ui.Layout) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.renders = append(d.renders, l.Screen)
	return d.err
}

func (d *fakeDisplay) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.renders)
}

// pressed buttons are taken once
type fakeButtons map[button.Button]bool

func (f fakeButtons) Take(b button.Button) bool {
	p := f[b]
	delete(f, b)
	return p
}

type tenv struct {
	t           *testing.T
	log         *log2.Log
	ingest      *telemetry.Service
	display     *fakeDisplay
	m           *ui.Machine
	transitions []ui.Screen
	actions     []string
}

func newEnv(t *testing.T) *tenv {
	env := &tenv{
		t:       t,
		log:     log2.NewTest(t, log2.LDebug),
		display: &fakeDisplay{},
	}
	env.ingest = telemetry.NewService(nil, env.log)
	env.m = ui.NewMachine(ui.Config{Pairing: "test-pairing"}, env.ingest.Registers(), env.display, env.log)
	env.m.XXX_testHook = func(s ui.Screen) { env.transitions = append(env.transitions, s) }
	env.m.OnAction = func(a string) { env.actions = append(env.actions, a) }
	return env
}

func (env *tenv) tick(in ui.Input) {
	require.True(env.t, env.m.Run(in))
}

func (env *tenv) idle() { env.tick(ui.Input{}) }

func (env *tenv) touchAt(x, y int, pressed bool) {
	env.tick(ui.Input{Touch: touch.Sample{X: uint16(x), Y: uint16(y), Pressed: pressed}})
}

// clickButton is press then release at center of named button on current layout.
func (env *tenv) clickButton(name string) {
	b := env.m.Layout().Button(name)
	require.NotNil(env.t, b, "button=%s screen=%s", name, env.m.Screen())
	c := b.Rect.Min.Add(b.Rect.Max).Div(2)
	env.touchAt(c.X, c.Y, true)
	env.touchAt(c.X, c.Y, false)
}

func (env *tenv) press(bs ...button.Button) {
	f := fakeButtons{}
	for _, b := range bs {
		f[b] = true
	}
	env.tick(ui.Input{Buttons: f})
}

func (env *tenv) write(r telemetry.Record) {
	_, err := env.ingest.Write(r.Kind(), r.Encode(), 0)
	require.NoError(env.t, err)
}

func TestStart(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	assert.Equal(t, ui.ScreenInvalid, env.m.Screen())
	env.m.Start()
	assert.Equal(t, ui.ScreenMainMenu, env.m.Screen())
	assert.Equal(t, []ui.Screen{ui.ScreenMainMenu}, env.display.renders)
	l := env.m.Layout()
	assert.Equal(t, "test-pairing", l.QR)
	assert.NotNil(t, l.Button(ui.WidgetPerformance))
	assert.NotNil(t, l.Button(ui.WidgetMedia))

	// nothing changed, nothing to render
	env.idle()
	env.idle()
	assert.Equal(t, 1, env.display.count())
	assert.Empty(t, env.transitions)
}

func TestEndToEnd(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.m.Start()
	require.Equal(t, ui.ScreenMainMenu, env.m.Screen())

	payload := []byte{42, 0, 0, 0, 77, 0, 0, 0, 8, 0, 0, 0}
	n, err := env.ingest.Endpoint(telemetry.KindUsage)(payload, 0)
	require.NoError(t, err)
	require.Equal(t, 12, n)

	// press somewhere on main menu, navigation happens by request
	env.touchAt(5, 230, true)
	env.m.Request(ui.ScreenPerformanceMetrics)
	env.idle()
	require.Equal(t, ui.ScreenPerformanceMetrics, env.m.Screen())

	l := env.m.Layout()
	cpu, gpu, mem := l.Bar(ui.WidgetUsageA), l.Bar(ui.WidgetUsageB), l.Bar(ui.WidgetQuantity)
	require.NotNil(t, cpu)
	require.NotNil(t, gpu)
	require.NotNil(t, mem)
	assert.Equal(t, 42, cpu.Value)
	assert.Equal(t, 100, cpu.Max)
	assert.Equal(t, 77, gpu.Value)
	assert.Equal(t, 100, gpu.Max)
	assert.Equal(t, 8, mem.Value)
	assert.Equal(t, 16, mem.Max)
	assert.InDelta(t, 0.5, mem.Fill(), 0.001)

	// release at last pressed coordinate does not alter screen
	env.touchAt(5, 230, false)
	assert.Equal(t, ui.ScreenPerformanceMetrics, env.m.Screen())

	env.press(button.Back)
	assert.Equal(t, ui.ScreenMainMenu, env.m.Screen())
	assert.Nil(t, env.m.Layout().Bar(ui.WidgetUsageA), "performance widgets must be discarded")
	assert.Equal(t, []ui.Screen{ui.ScreenPerformanceMetrics, ui.ScreenMainMenu}, env.transitions)
}

func TestRequestLastWriteWins(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.m.Start()
	env.m.Request(ui.ScreenMediaControls)
	env.m.Request(ui.ScreenPerformanceMetrics)
	assert.Equal(t, ui.ScreenPerformanceMetrics, env.m.Pending())
	env.idle()
	assert.Equal(t, ui.ScreenPerformanceMetrics, env.m.Screen())
	assert.Equal(t, []ui.Screen{ui.ScreenPerformanceMetrics}, env.transitions)
	assert.Equal(t, ui.ScreenInvalid, env.m.Pending())

	// touch click and back button in the same tick: button submitted later wins
	env.clickButton(ui.WidgetBack)
	require.Equal(t, ui.ScreenMainMenu, env.m.Screen())
	b := env.m.Layout().Button(ui.WidgetMedia)
	c := b.Rect.Min.Add(b.Rect.Max).Div(2)
	env.touchAt(c.X, c.Y, true)
	env.tick(ui.Input{Touch: touch.Sample{X: uint16(c.X), Y: uint16(c.Y)}, Buttons: fakeButtons{button.Select: true}})
	assert.Equal(t, ui.ScreenPerformanceMetrics, env.m.Screen(), "focus is on Performance, Select request overwrites touch request")
}

func TestRequestCurrentDropped(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.m.Start()
	renders := env.display.count()
	env.m.Request(ui.ScreenMainMenu)
	env.idle()
	assert.Equal(t, ui.ScreenMainMenu, env.m.Screen())
	assert.Equal(t, ui.ScreenInvalid, env.m.Pending())
	assert.Empty(t, env.transitions)
	assert.Equal(t, renders, env.display.count())

	env.m.Request(ui.Screen(42))
	env.idle()
	assert.Equal(t, ui.ScreenMainMenu, env.m.Screen())
	assert.Equal(t, ui.ScreenInvalid, env.m.Pending())
}

func TestRunBeforeStartIsStale(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.m.Request(ui.ScreenPerformanceMetrics)
	env.press(button.Back)
	env.touchAt(30, 60, true)
	env.touchAt(30, 60, false)
	assert.Equal(t, ui.ScreenInvalid, env.m.Screen())
	assert.Equal(t, ui.ScreenInvalid, env.m.Pending(), "stale request dropped, not retried")
	assert.Equal(t, 0, env.display.count())

	env.m.Start()
	env.idle()
	assert.Equal(t, ui.ScreenMainMenu, env.m.Screen())
	assert.Empty(t, env.transitions)
}

func TestBarsClamp(t *testing.T) {
	t.Parallel()

	type Case struct {
		name   string
		input  telemetry.UsageRecord
		expect [3]int
	}
	cases := []Case{
		{"zero", telemetry.UsageRecord{}, [3]int{0, 0, 0}},
		{"full", telemetry.UsageRecord{UsagePctA: 100, UsagePctB: 100, Quantity: 16}, [3]int{100, 100, 16}},
		{"over", telemetry.UsageRecord{UsagePctA: 101, UsagePctB: 250, Quantity: 17}, [3]int{100, 100, 16}},
		{"max-uint32", telemetry.UsageRecord{UsagePctA: 0xffffffff, UsagePctB: 0x80000000, Quantity: 0xffffffff}, [3]int{100, 100, 16}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			env := newEnv(t)
			env.m.Start()
			env.write(c.input)
			env.m.Request(ui.ScreenPerformanceMetrics)
			env.idle()
			l := env.m.Layout()
			got := [3]int{l.Bar(ui.WidgetUsageA).Value, l.Bar(ui.WidgetUsageB).Value, l.Bar(ui.WidgetQuantity).Value}
			assert.Equal(t, c.expect, got)
		})
	}
}

func TestPerformanceFollowsRegisters(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.m.Start()
	env.clickButton(ui.WidgetPerformance)
	require.Equal(t, ui.ScreenPerformanceMetrics, env.m.Screen())
	l := env.m.Layout()
	assert.Equal(t, "-- MHz", l.Label(ui.WidgetClock).Text)
	assert.Equal(t, "CPU -- C", l.Label(ui.WidgetTempA).Text)
	assert.Equal(t, "down -- kbit/s  up -- kbit/s", l.Label(ui.WidgetNetwork).Text)

	renders := env.display.count()
	env.write(telemetry.ScalarRecord{ClockMHz: 4000, PowerWatts: 65, TempA: 55, TempB: 60})
	env.write(telemetry.NetworkRecord{DownBitsPerSec: 1200, UpBitsPerSec: 80})
	env.idle()
	assert.Equal(t, "4000 MHz", l.Label(ui.WidgetClock).Text)
	assert.Equal(t, "65 W", l.Label(ui.WidgetPower).Text)
	assert.Equal(t, "CPU 55 C", l.Label(ui.WidgetTempA).Text)
	assert.Equal(t, "GPU 60 C", l.Label(ui.WidgetTempB).Text)
	assert.Equal(t, "down 1200 kbit/s  up 80 kbit/s", l.Label(ui.WidgetNetwork).Text)
	assert.Equal(t, renders+1, env.display.count())

	// unchanged registers, no render
	env.idle()
	assert.Equal(t, renders+1, env.display.count())

	// rejected write leaves labels as they were
	_, err := env.ingest.Write(telemetry.KindScalar, make([]byte, 20), 0)
	require.Error(t, err)
	env.idle()
	assert.Equal(t, "4000 MHz", l.Label(ui.WidgetClock).Text)
}

func TestTouchClick(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.m.Start()
	perf := env.m.Layout().Button(ui.WidgetPerformance).Rect

	// press inside, release outside
	env.touchAt(perf.Min.X+1, perf.Min.Y+1, true)
	env.touchAt(perf.Max.X+20, perf.Max.Y+20, false)
	assert.Equal(t, ui.ScreenMainMenu, env.m.Screen())

	// press outside, slide in, release inside
	env.touchAt(perf.Max.X+20, perf.Min.Y+1, true)
	env.touchAt(perf.Min.X+1, perf.Min.Y+1, true)
	env.touchAt(perf.Min.X+1, perf.Min.Y+1, false)
	assert.Equal(t, ui.ScreenMainMenu, env.m.Screen())

	// release alone
	env.touchAt(perf.Min.X+1, perf.Min.Y+1, false)
	assert.Equal(t, ui.ScreenMainMenu, env.m.Screen())

	// held press is not a click until release
	env.touchAt(perf.Min.X+1, perf.Min.Y+1, true)
	env.touchAt(perf.Min.X+2, perf.Min.Y+2, true)
	assert.Equal(t, ui.ScreenMainMenu, env.m.Screen())
	env.touchAt(perf.Min.X+2, perf.Min.Y+2, false)
	assert.Equal(t, ui.ScreenPerformanceMetrics, env.m.Screen())

	env.clickButton(ui.WidgetBack)
	assert.Equal(t, ui.ScreenMainMenu, env.m.Screen())
}

func TestTouchHeldAcrossTransition(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.m.Start()
	env.m.Request(ui.ScreenPerformanceMetrics)
	env.idle()
	back := env.m.Layout().Button(ui.WidgetBack).Rect
	at := back.Min.Add(back.Max).Div(2)
	env.m.Request(ui.ScreenMainMenu)
	env.idle()
	require.Equal(t, ui.ScreenMainMenu, env.m.Screen())

	// finger rests where Back will appear, navigation happens underneath
	env.touchAt(at.X, at.Y, true)
	env.m.Request(ui.ScreenPerformanceMetrics)
	env.touchAt(at.X, at.Y, true)
	require.Equal(t, ui.ScreenPerformanceMetrics, env.m.Screen())
	env.touchAt(at.X, at.Y, true)
	env.touchAt(at.X, at.Y, false)
	assert.Equal(t, ui.ScreenPerformanceMetrics, env.m.Screen())
	assert.Equal(t, []ui.Screen{ui.ScreenPerformanceMetrics, ui.ScreenMainMenu, ui.ScreenPerformanceMetrics}, env.transitions)

	// next press on new screen clicks normally
	env.clickButton(ui.WidgetBack)
	assert.Equal(t, ui.ScreenMainMenu, env.m.Screen())
}

func TestButtonNavigation(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.m.Start()
	assert.Equal(t, ui.WidgetPerformance, env.m.Layout().Focused().Name)
	env.press(button.Next)
	assert.Equal(t, ui.WidgetMedia, env.m.Layout().Focused().Name)
	env.press(button.Next)
	assert.Equal(t, ui.WidgetPerformance, env.m.Layout().Focused().Name)
	env.press(button.Prev)
	assert.Equal(t, ui.WidgetMedia, env.m.Layout().Focused().Name)
	env.press(button.Select)
	require.Equal(t, ui.ScreenMediaControls, env.m.Screen())

	env.press(button.Prev)
	env.press(button.Select)
	env.clickButton(ui.WidgetMediaNext)
	assert.Equal(t, []string{"previous", "play-pause", "next"}, env.actions)
	assert.Equal(t, ui.ScreenMediaControls, env.m.Screen())

	env.press(button.Back)
	assert.Equal(t, ui.ScreenMainMenu, env.m.Screen())
	// focus is reset on entry
	assert.Equal(t, ui.WidgetPerformance, env.m.Layout().Focused().Name)
}

func TestRenderErrorIgnored(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.display.err = errors.New("framebuffer gone")
	env.m.Start()
	env.m.Request(ui.ScreenMediaControls)
	env.idle()
	assert.Equal(t, ui.ScreenMediaControls, env.m.Screen())
	assert.Equal(t, 2, env.display.count())
}

func TestParseScreen(t *testing.T) {
	t.Parallel()

	s, err := ui.ParseScreen("performance")
	require.NoError(t, err)
	assert.Equal(t, ui.ScreenPerformanceMetrics, s)
	_, err = ui.ParseScreen("invalid")
	assert.True(t, errors.IsNotValid(err))
	assert.Equal(t, "media", ui.ScreenMediaControls.String())
}
