package touch

import (
	"sync/atomic"
	"time"

	"github.com/juju/errors"
)

var ErrBusy = errors.New("touch bus busy")

// BoundedBus limits each transaction to timeout.
// Stalled transaction keeps running in background, until it completes
// new transactions fail fast with ErrBusy.
type BoundedBus struct {
	bus     Bus
	timeout time.Duration
	busy    uint32
}

func NewBoundedBus(bus Bus, timeout time.Duration) *BoundedBus {
	return &BoundedBus{bus: bus, timeout: timeout}
}

func (self *BoundedBus) Tx(w, r []byte) error {
	if !atomic.CompareAndSwapUint32(&self.busy, 0, 1) {
		return ErrBusy
	}

	// private buffers, caller may reuse its own after timeout
	wbuf := append([]byte(nil), w...)
	rbuf := make([]byte, len(r))
	done := make(chan error, 1)
	go func() {
		err := self.bus.Tx(wbuf, rbuf)
		atomic.StoreUint32(&self.busy, 0)
		done <- err
	}()

	tmr := time.NewTimer(self.timeout)
	defer tmr.Stop()
	select {
	case err := <-done:
		if err != nil {
			return errors.Trace(err)
		}
		copy(r, rbuf)
		return nil
	case <-tmr.C:
		return errors.Timeoutf("touch bus Tx send=%x timeout=%s", w, self.timeout)
	}
}

// Busy reports a transaction in flight.
func (self *BoundedBus) Busy() bool { return atomic.LoadUint32(&self.busy) == 1 }
