package gatt

import (
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/hwmon-panel/internal/telemetry"
	"github.com/temoto/hwmon-panel/log2"
	"tinygo.org/x/bluetooth"
)

// CharWriter is the subset of bluetooth.DeviceCharacteristic used by Central.
type CharWriter interface {
	WriteWithoutResponse(p []byte) (int, error)
}

// Central is the host side: connects to panel by advertised name and writes records.
type Central struct {
	Log       *log2.Log
	mu        sync.Mutex
	device    bluetooth.Device
	connected bool
	chars     map[telemetry.Kind]CharWriter
}

// Dial scans for deviceName up to timeout, connects and discovers telemetry characteristics.
func Dial(adapter *bluetooth.Adapter, deviceName string, timeout time.Duration, log *log2.Log) (*Central, error) {
	if adapter == nil {
		adapter = bluetooth.DefaultAdapter
	}
	if err := adapter.Enable(); err != nil {
		return nil, errors.Annotate(err, "gatt enable adapter")
	}

	var found bluetooth.ScanResult
	var ok bool
	tmr := time.AfterFunc(timeout, func() { _ = adapter.StopScan() })
	err := adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
		if result.LocalName() != deviceName {
			return
		}
		found, ok = result, true
		if err := a.StopScan(); err != nil {
			log.Errorf("gatt stop scan err=%v", err)
		}
	})
	tmr.Stop()
	if err != nil {
		return nil, errors.Annotate(err, "gatt scan")
	}
	if !ok {
		return nil, errors.NotFoundf("gatt device name=%q within %v", deviceName, timeout)
	}
	log.Infof("gatt found name=%q address=%s rssi=%d", deviceName, found.Address.String(), found.RSSI)

	device, err := adapter.Connect(found.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, errors.Annotatef(err, "gatt connect address=%s", found.Address.String())
	}
	self := &Central{Log: log, device: device, connected: true}
	if err = self.discover(); err != nil {
		_ = self.Close()
		return nil, err
	}
	return self, nil
}

// NewCentral wraps already discovered characteristics, used by tests.
func NewCentral(chars map[telemetry.Kind]CharWriter, log *log2.Log) *Central {
	return &Central{Log: log, chars: chars}
}

func (self *Central) discover() error {
	services, err := self.device.DiscoverServices([]bluetooth.UUID{ServiceUUID})
	if err != nil {
		return errors.Annotate(err, "gatt discover service")
	}
	if len(services) == 0 {
		return errors.NotFoundf("gatt service=%s", ServiceUUIDString)
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{ScalarUUID, NetworkUUID, UsageUUID})
	if err != nil {
		return errors.Annotate(err, "gatt discover characteristics")
	}
	self.chars = make(map[telemetry.Kind]CharWriter, len(chars))
	for i := range chars {
		if k := KindByUUID(chars[i].UUID()); k.Valid() {
			self.chars[k] = chars[i]
		}
	}
	for _, k := range telemetry.AllKinds {
		if _, ok := self.chars[k]; !ok {
			return errors.NotFoundf("gatt characteristic kind=%s", k)
		}
	}
	return nil
}

// WriteRecord sends payload with write-without-response, panel never acknowledges.
func (self *Central) WriteRecord(k telemetry.Kind, payload []byte) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	c, ok := self.chars[k]
	if !ok {
		return errors.NotFoundf("gatt characteristic kind=%s", k)
	}
	n, err := c.WriteWithoutResponse(payload)
	if err != nil {
		return errors.Annotatef(err, "gatt write kind=%s", k)
	}
	if n != len(payload) {
		return errors.Errorf("gatt write kind=%s short n=%d expected=%d", k, n, len(payload))
	}
	return nil
}

func (self *Central) Close() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.chars = nil
	if !self.connected {
		return nil
	}
	self.connected = false
	return errors.Annotate(self.device.Disconnect(), "gatt disconnect")
}
