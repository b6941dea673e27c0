// Package display renders ui layouts into RGBA canvas and flushes it to framebuffer.
package display

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/juju/errors"
	"github.com/skip2/go-qrcode"
	"github.com/temoto/hwmon-panel/hardware/display/framebuffer"
	"github.com/temoto/hwmon-panel/internal/ui"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	colorBackground = color.RGBA{0, 0, 0, 0xff}
	colorForeground = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorAccent     = color.RGBA{0x20, 0x90, 0xff, 0xff}
	colorFocus      = color.RGBA{0x30, 0x30, 0x60, 0xff}
)

var _ ui.Display = new(Display)

type Display struct {
	mu   sync.Mutex
	fb   *framebuffer.Framebuffer
	img  *image.RGBA
	face font.Face
}

func NewFb(dev string) (*Display, error) {
	fb, err := framebuffer.New(dev)
	if err != nil {
		return nil, errors.Annotatef(err, "framebuffer device=%s", dev)
	}
	d := &Display{
		fb:   fb,
		img:  image.NewRGBA(image.Rectangle{Max: fb.Size()}),
		face: basicfont.Face7x13,
	}
	return d, nil
}

// NewMock keeps pixels in memory only.
func NewMock(size image.Point) *Display {
	return &Display{
		img:  image.NewRGBA(image.Rectangle{Max: size}),
		face: basicfont.Face7x13,
	}
}

func (d *Display) Size() image.Point { return d.img.Rect.Max }

func (d *Display) Close() error {
	if d.fb == nil {
		return nil
	}
	return d.fb.Close()
}

func (d *Display) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fill(d.img.Rect, colorBackground)
	return d.flush()
}

// Render draws whole layout and flushes.
func (d *Display) Render(l *ui.Layout) error {
	if l == nil {
		return errors.NotValidf("layout nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fill(d.img.Rect, colorBackground)
	for _, lb := range l.Labels {
		d.text(lb.Rect, lb.Text, colorForeground, false)
	}
	focused := l.Focused()
	for _, b := range l.Buttons {
		if b == focused {
			d.fill(b.Rect, colorFocus)
		}
		d.outline(b.Rect, colorForeground)
		d.text(b.Rect, b.Text, colorForeground, true)
	}
	for _, bar := range l.Bars {
		d.bar(bar)
	}
	if l.QR != "" && !l.QRRect.Empty() {
		if err := d.qr(l.QR, l.QRRect, qrcode.Medium); err != nil {
			return errors.Annotate(err, "render")
		}
	}
	return d.flush()
}

// QR draws text as QR code over whole display.
func (d *Display) QR(text string, border bool, level qrcode.RecoveryLevel) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	qr, err := qrcode.New(text, level)
	if err != nil {
		return errors.Annotate(err, "QR")
	}
	qr.DisableBorder = !border
	size := d.img.Rect.Max
	img := qr.Image(minInt(size.X, size.Y)).(*image.Paletted)
	if !img.Rect.In(d.img.Rect) {
		return errors.Errorf("QR image size=%s > display size=%s", img.Bounds().Max.String(), size.String())
	}
	d.paletted2(img, image.Point{})
	return d.flush()
}

func (d *Display) qr(text string, r image.Rectangle, level qrcode.RecoveryLevel) error {
	qr, err := qrcode.New(text, level)
	if err != nil {
		return errors.Annotate(err, "QR")
	}
	qr.DisableBorder = true
	side := minInt(r.Dx(), r.Dy())
	// negative size means pixels per module, fall back to 1 when rect too small
	img := qr.Image(side).(*image.Paletted)
	if img.Rect.Dx() > side {
		img = qr.Image(-1).(*image.Paletted)
	}
	d.paletted2(img, r.Min)
	return nil
}

// String2 is ASCII art of display, black pixels are spaces.
func (d *Display) String2() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	size := d.img.Rect.Max
	b := strings.Builder{}
	b.Grow((size.X*2 + 1) * size.Y) // +1 for \n
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			c := d.img.RGBAAt(x, y)
			if c.R == 0 && c.G == 0 && c.B == 0 {
				b.WriteString("  ")
			} else {
				b.WriteString("██")
			}
		}
		b.WriteRune('\n')
	}
	return b.String()
}

// Image returns copy of canvas.
func (d *Display) Image() *image.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	img := image.NewRGBA(d.img.Rect)
	copy(img.Pix, d.img.Pix)
	return img
}

func (d *Display) flush() error {
	if d.fb == nil {
		return nil
	}
	if err := d.fb.Update(d.img); err != nil {
		return err
	}
	return d.fb.Flush()
}

func (d *Display) fill(r image.Rectangle, c color.RGBA) {
	draw.Draw(d.img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func (d *Display) outline(r image.Rectangle, c color.RGBA) {
	r = r.Intersect(d.img.Rect)
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		d.img.SetRGBA(x, r.Min.Y, c)
		d.img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		d.img.SetRGBA(r.Min.X, y, c)
		d.img.SetRGBA(r.Max.X-1, y, c)
	}
}

// text draws s clipped to r, vertically centered.
func (d *Display) text(r image.Rectangle, s string, c color.RGBA, center bool) {
	if s == "" {
		return
	}
	dst, ok := d.img.SubImage(r).(*image.RGBA)
	if !ok || dst.Rect.Empty() {
		return
	}
	m := d.face.Metrics()
	x := r.Min.X + 2
	if center {
		w := font.MeasureString(d.face, s).Ceil()
		x = r.Min.X + (r.Dx()-w)/2
	}
	y := r.Min.Y + (r.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2
	dr := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: d.face,
		Dot:  fixed.P(x, y),
	}
	dr.DrawString(s)
}

func (d *Display) bar(b *ui.Bar) {
	const labelWidth = 50
	d.text(image.Rect(b.Rect.Min.X-labelWidth, b.Rect.Min.Y, b.Rect.Min.X, b.Rect.Max.Y), b.Text, colorForeground, false)
	d.outline(b.Rect, colorForeground)
	inner := b.Rect.Inset(2)
	filled := inner
	filled.Max.X = inner.Min.X + int(float64(inner.Dx())*b.Fill())
	d.fill(filled, colorAccent)
}

func (d *Display) paletted2(img *image.Paletted, at image.Point) {
	min, max := img.Bounds().Min, img.Bounds().Max
	bg := toRGBA(img.Palette[0])
	fg := toRGBA(img.Palette[1])
	for y := min.Y; y < max.Y; y++ {
		for x := min.X; x < max.X; x++ {
			palidx := img.Pix[img.PixOffset(x, y)]
			c := bg
			if palidx != 0 {
				c = fg
			}
			p := at.Add(image.Pt(x-min.X, y-min.Y))
			if p.In(d.img.Rect) {
				d.img.SetRGBA(p.X, p.Y, c)
			}
		}
	}
}

func minInt(i1, i2 int) int {
	if i1 <= i2 {
		return i1
	}
	return i2
}

func toRGBA(c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}
