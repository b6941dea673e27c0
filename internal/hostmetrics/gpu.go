package hostmetrics

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/juju/errors"
)

type GPU interface {
	Temperature() (uint32, error) // degrees C
	Utilization() (uint32, error) // percent
	Close() error
}

type nvmlError nvml.Return

func (e nvmlError) Error() string { return "nvml: " + nvml.ErrorString(nvml.Return(e)) }

func nvmlCheck(ret nvml.Return, op string) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return errors.Annotate(nvmlError(ret), op)
}

// NvmlGPU reads first NVIDIA device.
type NvmlGPU struct {
	device nvml.Device
}

var _ GPU = new(NvmlGPU)

func OpenNvml(index int) (*NvmlGPU, error) {
	if err := nvmlCheck(nvml.Init(), "init"); err != nil {
		return nil, err
	}
	device, ret := nvml.DeviceGetHandleByIndex(index)
	if err := nvmlCheck(ret, "device handle"); err != nil {
		_ = nvml.Shutdown()
		return nil, errors.Annotatef(err, "gpu index=%d", index)
	}
	return &NvmlGPU{device: device}, nil
}

func (self *NvmlGPU) Temperature() (uint32, error) {
	temp, ret := self.device.GetTemperature(nvml.TEMPERATURE_GPU)
	return temp, nvmlCheck(ret, "temperature")
}

func (self *NvmlGPU) Utilization() (uint32, error) {
	u, ret := self.device.GetUtilizationRates()
	return u.Gpu, nvmlCheck(ret, "utilization")
}

func (self *NvmlGPU) Close() error { return nvmlCheck(nvml.Shutdown(), "shutdown") }
