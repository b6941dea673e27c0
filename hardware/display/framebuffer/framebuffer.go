// Package framebuffer writes RGBA canvas to Linux fbdev, RGB565 or XRGB8888.
package framebuffer

import (
	"encoding/binary"
	"image"
	"image/color"
	"os"
	"unsafe"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

// linux/fb.h
const (
	ioctlGetVariableScreenInfo = 0x4600
	ioctlGetFixedScreenInfo    = 0x4602
)

type bitField struct {
	Offset   uint32
	Length   uint32
	MsbRight uint32
}

type fixedScreenInfo struct {
	Id           [16]byte
	SmemStart    uintptr
	SmemLen      uint32
	Type         uint32
	TypeAux      uint32
	Visual       uint32
	Xpanstep     uint16
	Ypanstep     uint16
	Ywrapstep    uint16
	LineLength   uint32
	MmioStart    uintptr
	MmioLen      uint32
	Accel        uint32
	Capabilities uint16
	Reserved     [2]uint16
}

type variableScreenInfo struct {
	Xres, Yres                 uint32
	XresVirtual, YresVirtual   uint32
	Xoffset, Yoffset           uint32
	BitsPerPixel               uint32
	Grayscale                  uint32
	Red, Green, Blue, Transp   bitField
	Nonstd                     uint32
	Activate                   uint32
	Height, Width              uint32
	AccelFlags                 uint32
	Pixclock                   uint32
	LeftMargin, RightMargin    uint32
	UpperMargin, LowerMargin   uint32
	HsyncLen, VsyncLen         uint32
	Sync, Vmode, Rotate        uint32
	Colorspace                 uint32
	Reserved                   [4]uint32
}

type Framebuffer struct {
	buf    []byte
	dev    *os.File
	stride int
	vinfo  variableScreenInfo
}

func New(dev string) (*Framebuffer, error) {
	devFile, err := os.OpenFile(dev, os.O_RDWR, os.ModeDevice)
	if err != nil {
		return nil, errors.Annotate(err, "open")
	}
	fb := &Framebuffer{dev: devFile}
	fd := fb.dev.Fd()

	var finfo fixedScreenInfo
	if err = ioctl(fd, ioctlGetFixedScreenInfo, unsafe.Pointer(&finfo)); err != nil {
		fb.dev.Close()
		return nil, errors.Annotate(err, "getFixedScreenInfo")
	}
	if err = ioctl(fd, ioctlGetVariableScreenInfo, unsafe.Pointer(&fb.vinfo)); err != nil {
		fb.dev.Close()
		return nil, errors.Annotate(err, "getVariableScreenInfo")
	}
	fb.stride = int(finfo.LineLength)
	if fb.stride == 0 {
		fb.stride = int(fb.vinfo.Xres * fb.vinfo.BitsPerPixel / 8)
	}
	fb.buf = make([]byte, fb.stride*int(fb.vinfo.Yres))
	return fb, nil
}

// newMemory is framebuffer without device, for tests.
func newMemory(w, h int, vinfo variableScreenInfo) *Framebuffer {
	vinfo.Xres, vinfo.Yres = uint32(w), uint32(h)
	stride := w * int(vinfo.BitsPerPixel/8)
	return &Framebuffer{buf: make([]byte, stride*h), stride: stride, vinfo: vinfo}
}

func (fb *Framebuffer) Close() error {
	if fb.dev == nil {
		return nil
	}
	return fb.dev.Close()
}

func (fb *Framebuffer) Flush() error {
	if fb.dev == nil {
		return nil
	}
	_, err := fb.dev.WriteAt(fb.buf, 0)
	return errors.Annotate(err, "framebuffer write")
}

func (fb *Framebuffer) Size() image.Point {
	return image.Point{X: int(fb.vinfo.Xres), Y: int(fb.vinfo.Yres)}
}

// Update encodes img into internal buffer, call Flush() to write to hardware.
// Parts of img outside of screen are ignored.
func (fb *Framebuffer) Update(img *image.RGBA) error {
	var put func(b []byte, c color.RGBA)
	wordSize := int(fb.vinfo.BitsPerPixel / 8)
	switch {
	case fb.vinfo.BitsPerPixel == 16 && sameColors(fb.vinfo, rgb565):
		put = func(b []byte, c color.RGBA) { binary.LittleEndian.PutUint16(b, encode565(c)) }
	case fb.vinfo.BitsPerPixel == 32 && sameColors(fb.vinfo, xrgb8888):
		put = func(b []byte, c color.RGBA) { binary.LittleEndian.PutUint32(b, encode8888(c)) }
	default:
		return errors.NotSupportedf("color model bpp=%d", fb.vinfo.BitsPerPixel)
	}

	r := img.Bounds().Intersect(image.Rectangle{Max: fb.Size()})
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := fb.buf[y*fb.stride:]
		for x := r.Min.X; x < r.Max.X; x++ {
			put(row[x*wordSize:], img.RGBAAt(x, y))
		}
	}
	return nil
}

var rgb565 = variableScreenInfo{
	BitsPerPixel: 16,
	Red:          bitField{Offset: 11, Length: 5},
	Green:        bitField{Offset: 5, Length: 6},
	Blue:         bitField{Offset: 0, Length: 5},
}

var xrgb8888 = variableScreenInfo{
	BitsPerPixel: 32,
	Red:          bitField{Offset: 16, Length: 8},
	Green:        bitField{Offset: 8, Length: 8},
	Blue:         bitField{Offset: 0, Length: 8},
}

func sameColors(a, b variableScreenInfo) bool {
	return a.Red == b.Red && a.Green == b.Green && a.Blue == b.Blue
}

func encode565(c color.RGBA) uint16 {
	return (uint16(c.R) & 0xf8 << 8) | (uint16(c.G) & 0xfc << 3) | (uint16(c.B) & 0xf8 >> 3)
}

func encode8888(c color.RGBA) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func ioctl(fd uintptr, cmd uintptr, data unsafe.Pointer) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, cmd, uintptr(data)); errno != 0 {
		return os.NewSyscallError("ioctl", errno)
	}
	return nil
}
