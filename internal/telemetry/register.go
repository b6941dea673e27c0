package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/temoto/hwmon-panel/helpers/atomic_clock"
)

// Register holds last validated record of one kind.
// Whole record is swapped atomically, readers never observe mixed fields.
// "updated" timestamp is set after value, without consistency; use for display only.
type Register struct {
	kind     Kind
	v        atomic.Value // Record
	updated  atomic_clock.Clock
	accepted uint32
	rejected uint32
}

type RegisterStat struct {
	Kind     Kind
	Accepted uint32
	Rejected uint32
	Updated  time.Time // zero if never written
}

func newRegister(k Kind) *Register {
	self := &Register{kind: k}
	self.v.Store(zero(k))
	return self
}

func (self *Register) Kind() Kind { return self.kind }

// Load returns a copy of current record.
func (self *Register) Load() Record { return self.v.Load().(Record) }

func (self *Register) store(r Record) {
	self.v.Store(r)
	self.updated.SetNow()
	atomic.AddUint32(&self.accepted, 1)
}

func (self *Register) reject() { atomic.AddUint32(&self.rejected, 1) }

// Seen reports at least one write was accepted.
func (self *Register) Seen() bool { return !self.updated.IsZero() }

func (self *Register) Stat() RegisterStat {
	s := RegisterStat{
		Kind:     self.kind,
		Accepted: atomic.LoadUint32(&self.accepted),
		Rejected: atomic.LoadUint32(&self.rejected),
		Updated:  self.updated.Time(),
	}
	return s
}

// Registers is the set of one register per record kind.
// Written by ingestion (BLE callback context), read by the tick loop.
type Registers struct {
	scalar  *Register
	network *Register
	usage   *Register
}

func NewRegisters() *Registers {
	return &Registers{
		scalar:  newRegister(KindScalar),
		network: newRegister(KindNetwork),
		usage:   newRegister(KindUsage),
	}
}

// Get returns nil for unknown kind.
func (self *Registers) Get(k Kind) *Register {
	switch k {
	case KindScalar:
		return self.scalar
	case KindNetwork:
		return self.network
	case KindUsage:
		return self.usage
	}
	return nil
}

func (self *Registers) Scalar() ScalarRecord   { return self.scalar.Load().(ScalarRecord) }
func (self *Registers) Network() NetworkRecord { return self.network.Load().(NetworkRecord) }
func (self *Registers) Usage() UsageRecord     { return self.usage.Load().(UsageRecord) }

// Snapshot is a consistent copy of each register.
// Consistency holds per record, not across records.
type Snapshot struct {
	Scalar  ScalarRecord
	Network NetworkRecord
	Usage   UsageRecord
	seen    [len(kindNames)]bool
}

func (s *Snapshot) Seen(k Kind) bool { return k.Valid() && s.seen[k] }

func (self *Registers) Snapshot() Snapshot {
	s := Snapshot{
		Scalar:  self.Scalar(),
		Network: self.Network(),
		Usage:   self.Usage(),
	}
	for _, k := range AllKinds {
		s.seen[k] = self.Get(k).Seen()
	}
	return s
}

func (self *Registers) Stat() []RegisterStat {
	ss := make([]RegisterStat, 0, len(AllKinds))
	for _, k := range AllKinds {
		ss = append(ss, self.Get(k).Stat())
	}
	return ss
}
