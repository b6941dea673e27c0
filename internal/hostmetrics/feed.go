package hostmetrics

import (
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/hwmon-panel/internal/telemetry"
)

const DefaultInterval = 2 * time.Second

// Writer delivers one encoded record to the panel.
type Writer interface {
	WriteRecord(k telemetry.Kind, payload []byte) error
}

// Send writes sample in scalar, usage, network order.
// Stops on first transport error, panel keeps older records for the rest.
func Send(w Writer, s Sample) error {
	for _, r := range [...]telemetry.Record{s.Scalar, s.Usage, s.Network} {
		if err := w.WriteRecord(r.Kind(), r.Encode()); err != nil {
			return errors.Annotatef(err, "write %s", r.Kind())
		}
	}
	return nil
}

// Feed collects and sends every interval until a stops or transport fails.
// Collection errors are logged, partial samples are still sent.
func Feed(a *alive.Alive, c *Collector, w Writer, interval time.Duration) error {
	defer a.Done()
	if interval <= 0 {
		interval = DefaultInterval
	}
	// prime rate counters
	if _, err := c.Collect(); err != nil {
		c.Log.Debugf("hostmetrics prime err=%v", err)
	}
	tmr := time.NewTicker(interval)
	defer tmr.Stop()
	stopch := a.StopChan()
	for {
		select {
		case <-tmr.C:
			s, err := c.Collect()
			if err != nil {
				c.Log.Debugf("hostmetrics collect err=%v", err)
			}
			if err = Send(w, s); err != nil {
				return err
			}
			c.Log.Debugf("sent %s | %s | %s", s.Scalar, s.Usage, s.Network)
		case <-stopch:
			return nil
		}
	}
}
