package hostmetrics

import (
	"bufio"
	"bytes"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// CPUTimes is aggregate "cpu" line of /proc/stat in USER_HZ ticks.
type CPUTimes struct {
	Busy  uint64
	Total uint64
}

// UsagePct returns busy share between two samples, 0..100.
func (c CPUTimes) UsagePct(prev CPUTimes) uint32 {
	if c.Total <= prev.Total || c.Busy < prev.Busy {
		return 0
	}
	pct := (c.Busy - prev.Busy) * 100 / (c.Total - prev.Total)
	if pct > 100 {
		pct = 100
	}
	return uint32(pct)
}

func ParseCPUStat(r io.Reader) (CPUTimes, error) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		var t CPUTimes
		for i, f := range fields[1:] {
			v, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return CPUTimes{}, errors.Annotatef(err, "proc stat field=%d", i+1)
			}
			// guest and guest_nice are already counted in user and nice
			if i >= 8 {
				break
			}
			t.Total += v
			// idle, iowait
			if i != 3 && i != 4 {
				t.Busy += v
			}
		}
		return t, nil
	}
	if err := s.Err(); err != nil {
		return CPUTimes{}, errors.Trace(err)
	}
	return CPUTimes{}, errors.NotFoundf("proc stat cpu line")
}

type Meminfo struct {
	TotalKB     uint64
	AvailableKB uint64
}

func (m Meminfo) UsedKB() uint64 {
	if m.AvailableKB > m.TotalKB {
		return 0
	}
	return m.TotalKB - m.AvailableKB
}

// UsedGB rounds to nearest GiB.
func (m Meminfo) UsedGB() uint32 {
	return uint32((m.UsedKB() + 1<<19) >> 20)
}

func ParseMeminfo(r io.Reader) (Meminfo, error) {
	var m Meminfo
	var seenTotal, seenAvail bool
	s := bufio.NewScanner(r)
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) < 2 {
			continue
		}
		var dst *uint64
		switch fields[0] {
		case "MemTotal:":
			dst, seenTotal = &m.TotalKB, true
		case "MemAvailable:":
			dst, seenAvail = &m.AvailableKB, true
		default:
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return Meminfo{}, errors.Annotatef(err, "meminfo %s", fields[0])
		}
		*dst = v
	}
	if err := s.Err(); err != nil {
		return Meminfo{}, errors.Trace(err)
	}
	if !seenTotal || !seenAvail {
		return Meminfo{}, errors.NotFoundf("meminfo MemTotal/MemAvailable")
	}
	return m, nil
}

// NetCounters sums all interfaces except loopback.
type NetCounters struct {
	RxBytes uint64
	TxBytes uint64
}

func ParseNetDev(r io.Reader) (NetCounters, error) {
	var c NetCounters
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue // header
		}
		iface := strings.TrimSpace(line[:colon])
		fields := strings.Fields(line[colon+1:])
		if iface == "lo" {
			continue
		}
		if len(fields) < 9 {
			return NetCounters{}, errors.NotValidf("net/dev iface=%s fields=%d", iface, len(fields))
		}
		rx, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return NetCounters{}, errors.Annotatef(err, "net/dev iface=%s rx", iface)
		}
		tx, err := strconv.ParseUint(fields[8], 10, 64)
		if err != nil {
			return NetCounters{}, errors.Annotatef(err, "net/dev iface=%s tx", iface)
		}
		c.RxBytes += rx
		c.TxBytes += tx
	}
	return c, errors.Trace(s.Err())
}

// ParseCPUInfoMHz averages "cpu MHz" of all cores.
func ParseCPUInfoMHz(r io.Reader) (uint32, error) {
	var sum float64
	var n int
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()
		if !strings.HasPrefix(line, "cpu MHz") {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(line[colon+1:]), 64)
		if err != nil {
			return 0, errors.Annotate(err, "cpuinfo MHz")
		}
		sum += v
		n++
	}
	if err := s.Err(); err != nil {
		return 0, errors.Trace(err)
	}
	if n == 0 {
		return 0, errors.NotFoundf("cpuinfo cpu MHz")
	}
	return uint32(sum/float64(n) + 0.5), nil
}

// CPU package sensor drivers, first match wins.
var hwmonCPUNames = []string{"coretemp", "k10temp", "zenpower", "cpu_thermal"}

// ReadCPUTemp finds CPU hwmon by driver name and returns temp1_input in degrees C.
func ReadCPUTemp(fsys fs.FS) (uint32, error) {
	names, err := fs.Glob(fsys, "sys/class/hwmon/hwmon*/name")
	if err != nil {
		return 0, errors.Trace(err)
	}
	found := make(map[string]string, len(names))
	for _, n := range names {
		b, err := fs.ReadFile(fsys, n)
		if err != nil {
			continue
		}
		found[string(bytes.TrimSpace(b))] = path.Dir(n)
	}
	for _, want := range hwmonCPUNames {
		dir, ok := found[want]
		if !ok {
			continue
		}
		milli, err := readUint(fsys, path.Join(dir, "temp1_input"))
		if err != nil {
			return 0, err
		}
		return uint32((milli + 500) / 1000), nil
	}
	return 0, errors.NotFoundf("hwmon cpu sensor (%s)", strings.Join(hwmonCPUNames, ", "))
}

const raplDir = "sys/class/powercap/intel-rapl:0"

// ReadEnergy returns package energy counter and its wrap range in microjoules.
func ReadEnergy(fsys fs.FS) (energy, max uint64, err error) {
	if energy, err = readUint(fsys, path.Join(raplDir, "energy_uj")); err != nil {
		return 0, 0, err
	}
	if max, err = readUint(fsys, path.Join(raplDir, "max_energy_range_uj")); err != nil {
		return 0, 0, err
	}
	return energy, max, nil
}

func readUint(fsys fs.FS, name string) (uint64, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return 0, errors.Annotatef(err, "read %s", name)
	}
	v, err := strconv.ParseUint(string(bytes.TrimSpace(b)), 10, 64)
	return v, errors.Annotatef(err, "parse %s", name)
}
