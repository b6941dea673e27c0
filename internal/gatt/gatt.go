// Package gatt exposes telemetry ingestion endpoints as BLE GATT characteristics.
// The link is write-only: characteristics accept write-without-response and never reply.
package gatt

import (
	"github.com/juju/errors"
	"github.com/temoto/hwmon-panel/internal/telemetry"
	"github.com/temoto/hwmon-panel/log2"
	"tinygo.org/x/bluetooth"
)

const DefaultDeviceName = "EiE 6248 Hardware Monitor"

const (
	ServiceUUIDString = "01928374-1234-5678-1234-56789abcdef0"
	ScalarUUIDString  = "01928374-1234-5678-1234-56789abcdef1"
	NetworkUUIDString = "01928374-1234-5678-1234-56789abcdef2"
	UsageUUIDString   = "01928374-1234-5678-1234-56789abcdef3"
)

var (
	ServiceUUID = mustParseUUID(ServiceUUIDString)
	ScalarUUID  = mustParseUUID(ScalarUUIDString)
	NetworkUUID = mustParseUUID(NetworkUUIDString)
	UsageUUID   = mustParseUUID(UsageUUIDString)
)

func mustParseUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic("code error gatt uuid=" + s + " err=" + err.Error())
	}
	return u
}

// CharacteristicUUID maps record kind to its characteristic.
func CharacteristicUUID(k telemetry.Kind) (bluetooth.UUID, bool) {
	switch k {
	case telemetry.KindScalar:
		return ScalarUUID, true
	case telemetry.KindNetwork:
		return NetworkUUID, true
	case telemetry.KindUsage:
		return UsageUUID, true
	}
	return bluetooth.UUID{}, false
}

// KindByUUID is the reverse of CharacteristicUUID.
func KindByUUID(u bluetooth.UUID) telemetry.Kind {
	for _, k := range telemetry.AllKinds {
		if cu, _ := CharacteristicUUID(k); cu == u {
			return k
		}
	}
	return telemetry.KindInvalid
}

const writeFlags = bluetooth.CharacteristicWriteWithoutResponsePermission | bluetooth.CharacteristicWritePermission

// Service builds GATT service with one characteristic per record kind.
// Each WriteEvent goes straight into ingestion; rejected writes are logged and dropped.
func Service(ingest *telemetry.Service, log *log2.Log) *bluetooth.Service {
	chars := make([]bluetooth.CharacteristicConfig, 0, len(telemetry.AllKinds))
	for _, k := range telemetry.AllKinds {
		u, _ := CharacteristicUUID(k)
		chars = append(chars, bluetooth.CharacteristicConfig{
			UUID:       u,
			Flags:      writeFlags,
			WriteEvent: writeHandler(ingest.Endpoint(k), k, log),
		})
	}
	return &bluetooth.Service{
		UUID:            ServiceUUID,
		Characteristics: chars,
	}
}

func writeHandler(endpoint telemetry.EndpointFunc, k telemetry.Kind, log *log2.Log) func(bluetooth.Connection, int, []byte) {
	return func(client bluetooth.Connection, offset int, value []byte) {
		if _, err := endpoint(value, offset); err != nil {
			log.Infof("gatt write %s dropped: %v", k, err)
		}
	}
}

// Server owns BLE adapter lifecycle on the device side.
type Server struct {
	Log        *log2.Log
	DeviceName string
	adapter    *bluetooth.Adapter
	adv        *bluetooth.Advertisement
}

func NewServer(adapter *bluetooth.Adapter, deviceName string, log *log2.Log) *Server {
	if adapter == nil {
		adapter = bluetooth.DefaultAdapter
	}
	if deviceName == "" {
		deviceName = DefaultDeviceName
	}
	return &Server{Log: log, DeviceName: deviceName, adapter: adapter}
}

// Start enables radio, registers telemetry service and starts advertising.
func (self *Server) Start(ingest *telemetry.Service) error {
	if err := self.adapter.Enable(); err != nil {
		return errors.Annotate(err, "gatt enable adapter")
	}
	if err := self.adapter.AddService(Service(ingest, self.Log)); err != nil {
		return errors.Annotate(err, "gatt add service")
	}
	self.adv = self.adapter.DefaultAdvertisement()
	err := self.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    self.DeviceName,
		ServiceUUIDs: []bluetooth.UUID{ServiceUUID},
	})
	if err != nil {
		return errors.Annotate(err, "gatt configure advertisement")
	}
	if err = self.adv.Start(); err != nil {
		return errors.Annotate(err, "gatt start advertisement")
	}
	self.Log.Infof("gatt advertising name=%q service=%s", self.DeviceName, ServiceUUIDString)
	return nil
}

func (self *Server) Stop() error {
	if self.adv == nil {
		return nil
	}
	return errors.Annotate(self.adv.Stop(), "gatt stop advertisement")
}
