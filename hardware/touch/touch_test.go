package touch

import (
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/hwmon-panel/helpers"
	"github.com/temoto/hwmon-panel/log2"
)

type busTxCall struct {
	s []byte
	r []byte
	e error
}

// busMock replays scripted transactions in order.
type busMock struct {
	t       testing.TB
	mu      sync.Mutex
	expects []busTxCall
	index   int
}

func newBusMock(t testing.TB) *busMock {
	return &busMock{t: t, expects: make([]busTxCall, 0, 16)}
}

func (m *busMock) Tx(send, recv []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index >= len(m.expects) {
		m.t.Errorf("premature end of busMock.expects send=%x", send)
		return errors.New("busMock no more expects")
	}
	call := m.expects[m.index]
	m.index++
	assert.Equal(m.t, call.s, send)
	copy(recv, call.r)
	return call.e
}

func (m *busMock) PushOk(sendHex, recvHex string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expects = append(m.expects, busTxCall{s: helpers.MustHex(sendHex), r: helpers.MustHex(recvHex)})
}

func (m *busMock) PushError(sendHex string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expects = append(m.expects, busTxCall{s: helpers.MustHex(sendHex), e: err})
}

func (m *busMock) ExpectDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(m.t, len(m.expects), m.index, "busMock unused expects")
}

// pushPress scripts one active sample: status then XH XL YH YL.
func (m *busMock) pushPress(xh, xl, yh, yl string) {
	m.PushOk("02", "01")
	m.PushOk("03", xh)
	m.PushOk("04", xl)
	m.PushOk("05", yh)
	m.PushOk("06", yl)
}

func TestSamplePressRelease(t *testing.T) {
	t.Parallel()

	bus := newBusMock(t)
	p := NewPoller(bus, time.Second, log2.NewTest(t, log2.LDebug))

	bus.PushOk("02", "00")
	assert.Equal(t, Sample{X: 0, Y: 0, Pressed: false, Event: EventNone}, p.Sample())

	bus.pushPress("01", "2c", "00", "c8")
	assert.Equal(t, Sample{X: 300, Y: 200, Pressed: true, Event: EventPressDown}, p.Sample())

	// upper bits of XH are event flags, not coordinate
	bus.pushPress("81", "2d", "f0", "c9")
	assert.Equal(t, Sample{X: 301, Y: 201, Pressed: true, Event: EventContact}, p.Sample())

	bus.PushOk("02", "00")
	s := p.Sample()
	assert.False(t, s.Pressed)
	assert.Equal(t, uint16(301), s.X)
	assert.Equal(t, uint16(201), s.Y)

	bus.ExpectDone()
	assert.Equal(t, Stat{Samples: 4, Pressed: 2}, p.Stat())
}

func TestSampleInvalidStatus(t *testing.T) {
	t.Parallel()

	bus := newBusMock(t)
	p := NewPoller(bus, time.Second, log2.NewTest(t, log2.LDebug))

	bus.pushPress("00", "0a", "00", "14")
	require.True(t, p.Sample().Pressed)

	// reset and garbage point counts read as no touch, coordinates not read
	for _, status := range []string{"ff", "0f", "03"} {
		bus.PushOk("02", status)
		assert.Equal(t, Sample{X: 10, Y: 20, Event: EventNone}, p.Sample(), "status=%s", status)
	}

	// two points is valid, first point is reported
	bus.PushOk("02", "02")
	bus.PushOk("03", "00")
	bus.PushOk("04", "1e")
	bus.PushOk("05", "00")
	bus.PushOk("06", "28")
	assert.Equal(t, Sample{X: 30, Y: 40, Pressed: true, Event: EventPressDown}, p.Sample())

	bus.ExpectDone()
	assert.Equal(t, uint32(0), p.Stat().Errors)
}

func TestSampleBusError(t *testing.T) {
	t.Parallel()

	bus := newBusMock(t)
	p := NewPoller(bus, time.Second, log2.NewTest(t, log2.LDebug))

	bus.pushPress("00", "0a", "00", "14")
	require.True(t, p.Sample().Pressed)

	bus.PushError("02", errors.New("nack"))
	assert.Equal(t, Sample{X: 10, Y: 20, Event: EventNone}, p.Sample())

	// failure between coordinate reads must not leak partial coordinates
	bus.PushOk("02", "01")
	bus.PushOk("03", "01")
	bus.PushOk("04", "ff")
	bus.PushError("05", errors.New("arbitration lost"))
	assert.Equal(t, Sample{X: 10, Y: 20, Event: EventNone}, p.Sample())

	bus.ExpectDone()
	assert.Equal(t, uint32(2), p.Stat().Errors)
}

type stallBus struct {
	release chan struct{}
}

func (b *stallBus) Tx(w, r []byte) error {
	<-b.release
	r[0] = 0x01
	return nil
}

func TestBoundedBusTimeout(t *testing.T) {
	t.Parallel()

	stall := &stallBus{release: make(chan struct{})}
	bb := NewBoundedBus(stall, 10*time.Millisecond)
	var buf [1]byte

	err := bb.Tx([]byte{regStatus}, buf[:])
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err), errors.ErrorStack(err))
	assert.True(t, bb.Busy())

	err = bb.Tx([]byte{regStatus}, buf[:])
	assert.Equal(t, ErrBusy, errors.Cause(err))
	assert.Equal(t, byte(0), buf[0], "late response must not reach caller buffer")

	close(stall.release)
	require.Eventually(t, func() bool { return !bb.Busy() }, time.Second, time.Millisecond)
	require.NoError(t, bb.Tx([]byte{regStatus}, buf[:]))
	assert.Equal(t, byte(0x01), buf[0])
}

func TestSampleStalledBus(t *testing.T) {
	t.Parallel()

	stall := &stallBus{release: make(chan struct{})}
	defer close(stall.release)
	p := NewPoller(stall, 5*time.Millisecond, log2.NewTest(t, log2.LDebug))

	start := time.Now()
	for i := 0; i < 3; i++ {
		assert.False(t, p.Sample().Pressed)
	}
	assert.Less(t, int64(time.Since(start)), int64(time.Second))
	assert.Equal(t, uint32(3), p.Stat().Errors)
}

func TestCoord(t *testing.T) {
	t.Parallel()

	type Case struct {
		high, low byte
		expect    uint16
	}
	cases := []Case{
		{0x00, 0x00, 0},
		{0x01, 0x2c, 300},
		{0xc1, 0x2c, 300},
		{0x0f, 0xff, 0xfff},
		{0xf0, 0x10, 16},
	}
	for _, c := range cases {
		assert.Equal(t, c.expect, Coord(c.high, c.low), "high=%02x low=%02x", c.high, c.low)
	}
	assert.Equal(t, "lift-up", EventLiftUp.String())
}

func TestManual(t *testing.T) {
	t.Parallel()

	m := NewManual()
	assert.Equal(t, Sample{Event: EventNone}, m.Sample())
	m.Press(30, 200)
	assert.Equal(t, Sample{X: 30, Y: 200, Pressed: true, Event: EventContact}, m.Sample())
	m.Release()
	assert.Equal(t, Sample{X: 30, Y: 200, Event: EventNone}, m.Sample())
}
