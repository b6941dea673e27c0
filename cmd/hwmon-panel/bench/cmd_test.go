package bench

import (
	"bytes"
	"image"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/hwmon-panel/hardware/button"
	"github.com/temoto/hwmon-panel/hardware/display"
	"github.com/temoto/hwmon-panel/hardware/touch"
	"github.com/temoto/hwmon-panel/internal/gatt"
	"github.com/temoto/hwmon-panel/internal/panel"
	"github.com/temoto/hwmon-panel/internal/telemetry"
	"github.com/temoto/hwmon-panel/internal/ui"
	"github.com/temoto/hwmon-panel/log2"
)

func newConsole(t testing.TB) (*Console, *ui.Machine, *bytes.Buffer) {
	log := log2.NewTest(t, log2.LDebug)
	ingest := telemetry.NewService(nil, log)
	m := ui.NewMachine(ui.Config{}, ingest.Registers(), nil, log)
	m.Start()
	src := new(button.ManualSource)
	tm := touch.NewManual()
	p := panel.New(tm, button.NewPoller(src, log), m, log)
	out := new(bytes.Buffer)
	return NewConsole(ingest, m, p, src, tm, out), m, out
}

func TestConsoleScript(t *testing.T) {
	t.Parallel()

	c, m, out := newConsole(t)
	script := []string{
		"# comment",
		"",
		"write usage 2a0000004d00000008000000",
		"button select",
		"show",
	}
	for _, line := range script {
		require.NoError(t, c.Exec(line), line)
	}
	assert.Equal(t, ui.ScreenPerformanceMetrics, m.Screen())
	assert.Contains(t, out.String(), "usage accepted 12 bytes: usage_a=42% usage_b=77% quantity=8")
	assert.Contains(t, out.String(), "screen=performance pending=invalid")
	assert.Contains(t, out.String(), "bar usage_a CPU 42/100")

	// back button top left on performance screen
	require.NoError(t, c.Exec("touch 20 20"))
	require.NoError(t, c.Exec("release"))
	assert.Equal(t, ui.ScreenMainMenu, m.Screen())

	require.NoError(t, c.Exec("nav media"))
	assert.Equal(t, ui.ScreenMediaControls, m.Pending())
	require.NoError(t, c.Exec("tick 2"))
	assert.Equal(t, ui.ScreenMediaControls, m.Screen())

	out.Reset()
	require.NoError(t, c.Exec("stat"))
	assert.Contains(t, out.String(), "register usage accepted=1 rejected=0")
	assert.Contains(t, out.String(), "panel ticks=6 ")
}

func TestConsoleErrors(t *testing.T) {
	t.Parallel()

	c, m, _ := newConsole(t)
	cases := []struct {
		line  string
		check func(error) bool
	}{
		{"fly", errors.IsNotFound},
		{"write scalar 2a", telemetry.IsPayloadError},
		{"write gpu 00000000", errors.IsNotValid},
		{"write usage zz", func(err error) bool { return err != nil }},
		{"touch 1", errors.IsNotValid},
		{"touch x 1", func(err error) bool { return err != nil }},
		{"button menu", errors.IsNotValid},
		{"nav settings", errors.IsNotValid},
		{"tick -1", errors.IsNotValid},
		{"pair", errors.IsNotFound},
	}
	for _, c2 := range cases {
		err := c.Exec(c2.line)
		assert.True(t, c2.check(err), "line=%q err=%v", c2.line, err)
	}
	assert.Equal(t, ui.ScreenMainMenu, m.Screen())
	assert.False(t, c.ingest.Registers().Get(telemetry.KindScalar).Seen())
}

func TestConsolePair(t *testing.T) {
	t.Parallel()

	c, m, _ := newConsole(t)
	d := display.NewMock(image.Pt(ui.DefaultWidth, ui.DefaultHeight))
	require.NoError(t, d.Clear())
	blank := d.String2()
	c.SetPairing(d, gatt.DefaultDeviceName+"\n"+gatt.ServiceUUIDString)
	require.NoError(t, c.Exec("pair"))
	assert.NotEqual(t, blank, d.String2())
	assert.Equal(t, ui.ScreenMainMenu, m.Screen())
}
