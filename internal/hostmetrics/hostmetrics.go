// Package hostmetrics collects PC metrics and packs them into panel telemetry records.
// CPU, memory, network and power come from procfs/sysfs, GPU from NVML.
package hostmetrics

import (
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/hwmon-panel/helpers"
	"github.com/temoto/hwmon-panel/internal/telemetry"
	"github.com/temoto/hwmon-panel/log2"
)

// Sample is one feed interval worth of records.
type Sample struct {
	Scalar  telemetry.ScalarRecord
	Network telemetry.NetworkRecord
	Usage   telemetry.UsageRecord
}

// Collector keeps previous counters, rates are averaged since last Collect.
// Not safe for concurrent use.
type Collector struct {
	Log  *log2.Log
	fsys fs.FS
	gpu  GPU
	now  func() time.Time

	primed    bool
	prevTime  time.Time
	prevCPU   CPUTimes
	prevNet   NetCounters
	prevJoule uint64
}

// NewCollector reads files relative to fsys root ("proc/stat", "sys/class/...").
// Nil gpu reports zero GPU temperature and usage.
func NewCollector(fsys fs.FS, gpu GPU, log *log2.Log) *Collector {
	if fsys == nil {
		fsys = os.DirFS("/")
	}
	return &Collector{Log: log, fsys: fsys, gpu: gpu, now: time.Now}
}

// Collect always returns full sample. Unavailable sources stay zero
// and are reported together in error.
func (self *Collector) Collect() (Sample, error) {
	var s Sample
	errs := make([]error, 0, 8)
	now := self.now()
	elapsed := now.Sub(self.prevTime).Seconds()

	if mhz, err := self.parse("proc/cpuinfo", ParseCPUInfoMHz); err != nil {
		errs = append(errs, err)
	} else {
		s.Scalar.ClockMHz = mhz
	}
	if t, err := ReadCPUTemp(self.fsys); err != nil {
		errs = append(errs, err)
	} else {
		s.Scalar.TempA = t
	}
	if energy, max, err := ReadEnergy(self.fsys); err != nil {
		errs = append(errs, err)
	} else {
		if self.primed && elapsed > 0 {
			delta := energy - self.prevJoule
			if energy < self.prevJoule { // counter wrapped
				delta = max - self.prevJoule + energy
			}
			s.Scalar.PowerWatts = uint32(float64(delta)/1e6/elapsed + 0.5)
		}
		self.prevJoule = energy
	}

	if cpu, err := self.parseCPU(); err != nil {
		errs = append(errs, err)
	} else {
		if self.primed {
			s.Usage.UsagePctA = cpu.UsagePct(self.prevCPU)
		}
		self.prevCPU = cpu
	}
	if mem, err := self.parseMem(); err != nil {
		errs = append(errs, err)
	} else {
		s.Usage.Quantity = mem.UsedGB()
	}

	if net, err := self.parseNet(); err != nil {
		errs = append(errs, err)
	} else {
		if self.primed && elapsed > 0 {
			s.Network.DownBitsPerSec = kbitRate(net.RxBytes, self.prevNet.RxBytes, elapsed)
			s.Network.UpBitsPerSec = kbitRate(net.TxBytes, self.prevNet.TxBytes, elapsed)
		}
		self.prevNet = net
	}

	if self.gpu != nil {
		if t, err := self.gpu.Temperature(); err != nil {
			errs = append(errs, errors.Annotate(err, "gpu"))
		} else {
			s.Scalar.TempB = t
		}
		if u, err := self.gpu.Utilization(); err != nil {
			errs = append(errs, errors.Annotate(err, "gpu"))
		} else {
			s.Usage.UsagePctB = u
		}
	}

	self.primed = true
	self.prevTime = now
	return s, helpers.FoldErrors(errs)
}

// kbitRate is kilobits per second, 0 on counter reset.
func kbitRate(cur, prev uint64, seconds float64) uint32 {
	if cur < prev {
		return 0
	}
	return uint32(float64(cur-prev) * 8 / 1000 / seconds)
}

func (self *Collector) parse(name string, f func(io.Reader) (uint32, error)) (uint32, error) {
	file, err := self.fsys.Open(name)
	if err != nil {
		return 0, errors.Trace(err)
	}
	defer file.Close()
	v, err := f(file)
	return v, errors.Annotate(err, name)
}

func (self *Collector) parseCPU() (CPUTimes, error) {
	file, err := self.fsys.Open("proc/stat")
	if err != nil {
		return CPUTimes{}, errors.Trace(err)
	}
	defer file.Close()
	return ParseCPUStat(file)
}

func (self *Collector) parseMem() (Meminfo, error) {
	file, err := self.fsys.Open("proc/meminfo")
	if err != nil {
		return Meminfo{}, errors.Trace(err)
	}
	defer file.Close()
	return ParseMeminfo(file)
}

func (self *Collector) parseNet() (NetCounters, error) {
	file, err := self.fsys.Open("proc/net/dev")
	if err != nil {
		return NetCounters{}, errors.Trace(err)
	}
	defer file.Close()
	return ParseNetDev(file)
}
