// Package telemetry holds the latest metric records written by the host over BLE
// and the ingestion service that validates and decodes those writes.
//
// Wire format: every record is a fixed sequence of little-endian uint32 fields,
// no padding, no header. Writes must carry exactly one whole record at offset 0.
package telemetry

import (
	"encoding/binary"
	"fmt"

	"github.com/juju/errors"
)

type Kind uint8

const (
	KindInvalid Kind = iota
	KindScalar
	KindNetwork
	KindUsage
)

var kindNames = [...]string{"invalid", "scalar", "network", "usage"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

func (k Kind) Valid() bool { return k >= KindScalar && k <= KindUsage }

// Size returns record length in bytes, 0 for unknown kind.
func (k Kind) Size() int {
	switch k {
	case KindScalar:
		return 4 * 4
	case KindNetwork:
		return 2 * 4
	case KindUsage:
		return 3 * 4
	}
	return 0
}

func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if Kind(i).Valid() && name == s {
			return Kind(i), nil
		}
	}
	return KindInvalid, errors.NotValidf("record kind=%q", s)
}

var AllKinds = [...]Kind{KindScalar, KindNetwork, KindUsage}

// Record is implemented by value types only, so a loaded record is always a copy.
type Record interface {
	Kind() Kind
	Encode() []byte
}

type ScalarRecord struct {
	ClockMHz   uint32
	PowerWatts uint32
	TempA      uint32 // CPU, degrees C
	TempB      uint32 // GPU, degrees C
}

type NetworkRecord struct {
	DownBitsPerSec uint32
	UpBitsPerSec   uint32
}

type UsageRecord struct {
	UsagePctA uint32 // CPU
	UsagePctB uint32 // GPU
	Quantity  uint32 // memory, GB
}

func (ScalarRecord) Kind() Kind  { return KindScalar }
func (NetworkRecord) Kind() Kind { return KindNetwork }
func (UsageRecord) Kind() Kind   { return KindUsage }

func (r ScalarRecord) Encode() []byte {
	return putFields(KindScalar, r.ClockMHz, r.PowerWatts, r.TempA, r.TempB)
}
func (r NetworkRecord) Encode() []byte {
	return putFields(KindNetwork, r.DownBitsPerSec, r.UpBitsPerSec)
}
func (r UsageRecord) Encode() []byte {
	return putFields(KindUsage, r.UsagePctA, r.UsagePctB, r.Quantity)
}

func (r ScalarRecord) String() string {
	return fmt.Sprintf("clock=%dMHz power=%dW temp_a=%dC temp_b=%dC", r.ClockMHz, r.PowerWatts, r.TempA, r.TempB)
}
func (r NetworkRecord) String() string {
	return fmt.Sprintf("down=%d up=%d", r.DownBitsPerSec, r.UpBitsPerSec)
}
func (r UsageRecord) String() string {
	return fmt.Sprintf("usage_a=%d%% usage_b=%d%% quantity=%d", r.UsagePctA, r.UsagePctB, r.Quantity)
}

// Decode interprets b as record of kind k.
// Caller guarantees len(b) == k.Size().
func decode(k Kind, b []byte) Record {
	u := func(i int) uint32 { return binary.LittleEndian.Uint32(b[i*4:]) }
	switch k {
	case KindScalar:
		return ScalarRecord{ClockMHz: u(0), PowerWatts: u(1), TempA: u(2), TempB: u(3)}
	case KindNetwork:
		return NetworkRecord{DownBitsPerSec: u(0), UpBitsPerSec: u(1)}
	case KindUsage:
		return UsageRecord{UsagePctA: u(0), UsagePctB: u(1), Quantity: u(2)}
	}
	panic(fmt.Sprintf("code error telemetry decode kind=%s", k))
}

func putFields(k Kind, fields ...uint32) []byte {
	b := make([]byte, k.Size())
	for i, f := range fields {
		binary.LittleEndian.PutUint32(b[i*4:], f)
	}
	return b
}

// zero returns initial register value for kind.
func zero(k Kind) Record {
	switch k {
	case KindScalar:
		return ScalarRecord{}
	case KindNetwork:
		return NetworkRecord{}
	case KindUsage:
		return UsageRecord{}
	}
	panic(fmt.Sprintf("code error telemetry zero kind=%s", k))
}
