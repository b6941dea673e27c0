package telemetry

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/temoto/hwmon-panel/log2"
)

// PayloadError means write does not carry exactly one whole record at offset 0.
// Register is left untouched. Also known as OversizedOrMisalignedPayload.
type PayloadError struct {
	Kind   Kind
	Length int
	Offset int
}

func (e PayloadError) Error() string {
	return fmt.Sprintf("telemetry oversized or misaligned payload kind=%s length=%d expected=%d offset=%d",
		e.Kind, e.Length, e.Kind.Size(), e.Offset)
}

func IsPayloadError(err error) bool {
	_, ok := errors.Cause(err).(PayloadError)
	return ok
}

// EndpointFunc is one write endpoint bound to exactly one register.
type EndpointFunc func(payload []byte, offset int) (int, error)

// Service validates and decodes incoming writes.
// Safe for concurrent use, never blocks.
type Service struct {
	Log  *log2.Log
	regs *Registers
}

func NewService(regs *Registers, log *log2.Log) *Service {
	if regs == nil {
		regs = NewRegisters()
	}
	return &Service{Log: log, regs: regs}
}

func (self *Service) Registers() *Registers { return self.regs }

// Write replaces register of kind with record decoded from payload.
// Returns bytes consumed. There is no acknowledgement to the remote writer,
// transport decides what to do with error.
func (self *Service) Write(kind Kind, payload []byte, offset int) (int, error) {
	reg := self.regs.Get(kind)
	if reg == nil {
		err := PayloadError{Kind: kind, Length: len(payload), Offset: offset}
		self.Log.Debugf("%s", err.Error())
		return 0, errors.Trace(err)
	}
	if offset != 0 || len(payload) != kind.Size() {
		reg.reject()
		err := PayloadError{Kind: kind, Length: len(payload), Offset: offset}
		self.Log.Debugf("%s", err.Error())
		return 0, errors.Trace(err)
	}

	// decode into a fresh value first, then publish whole record
	r := decode(kind, payload)
	reg.store(r)
	self.Log.Debugf("telemetry %s %s", kind, r)
	return len(payload), nil
}

// Endpoint returns write function bound to kind, or nil for unknown kind.
func (self *Service) Endpoint(kind Kind) EndpointFunc {
	if !kind.Valid() {
		return nil
	}
	return func(payload []byte, offset int) (int, error) {
		return self.Write(kind, payload, offset)
	}
}
