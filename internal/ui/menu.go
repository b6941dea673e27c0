package ui

import (
	"fmt"
	"image"
)

const (
	DefaultWidth  = 320
	DefaultHeight = 240
)

// Widget names, used to find handles in layout.
const (
	WidgetTitle       = "title"
	WidgetPerformance = "performance"
	WidgetMedia       = "media"
	WidgetBack        = "back"
	WidgetClock       = "clock"
	WidgetPower       = "power"
	WidgetTempA       = "temp_a"
	WidgetTempB       = "temp_b"
	WidgetNetwork     = "network"
	WidgetUsageA      = "usage_a"
	WidgetUsageB      = "usage_b"
	WidgetQuantity    = "quantity"
	WidgetMediaPrev   = "media_prev"
	WidgetMediaPlay   = "media_play"
	WidgetMediaNext   = "media_next"
)

// Button is a touch target. Click either requests Target screen or performs Action.
type Button struct {
	Name   string
	Text   string
	Rect   image.Rectangle
	Target Screen
	Action string
}

func (self *Button) Contains(x, y int) bool { return image.Pt(x, y).In(self.Rect) }

type Label struct {
	Name string
	Text string
	Rect image.Rectangle
}

// Bar shows Value in [Min,Max].
type Bar struct {
	Name  string
	Text  string
	Value int
	Min   int
	Max   int
	Rect  image.Rectangle
}

// Set clamps v into [Min,Max], out of range input is never rejected.
func (self *Bar) Set(v int) { self.Value = clamp(v, self.Min, self.Max) }

// SetUint32 is Set for wire values, safe on 32 bit int platforms.
func (self *Bar) SetUint32(v uint32) {
	if self.Max >= 0 && uint64(v) > uint64(self.Max) {
		self.Value = self.Max
		return
	}
	self.Set(int(v))
}

// Fill returns filled fraction in [0,1].
func (self *Bar) Fill() float64 {
	if self.Max <= self.Min {
		return 0
	}
	return float64(self.Value-self.Min) / float64(self.Max-self.Min)
}

func (self *Bar) String() string { return fmt.Sprintf("%s %d/%d", self.Text, self.Value, self.Max) }

// Layout is the widget tree of one screen, rebuilt on every screen entry.
type Layout struct {
	Screen  Screen
	Width   int
	Height  int
	Buttons []*Button
	Labels  []*Label
	Bars    []*Bar
	QR      string
	QRRect  image.Rectangle
	Focus   int // index in Buttons, -1 without focus
}

// Hit returns button under point or nil.
func (self *Layout) Hit(x, y int) *Button {
	if self == nil {
		return nil
	}
	for _, b := range self.Buttons {
		if b.Contains(x, y) {
			return b
		}
	}
	return nil
}

func (self *Layout) Button(name string) *Button {
	for _, b := range self.Buttons {
		if b.Name == name {
			return b
		}
	}
	return nil
}

func (self *Layout) Label(name string) *Label {
	for _, l := range self.Labels {
		if l.Name == name {
			return l
		}
	}
	return nil
}

func (self *Layout) Bar(name string) *Bar {
	for _, b := range self.Bars {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Focused returns focused button or nil.
func (self *Layout) Focused() *Button {
	if self == nil || self.Focus < 0 || self.Focus >= len(self.Buttons) {
		return nil
	}
	return self.Buttons[self.Focus]
}

// MoveFocus cycles focus by delta over buttons.
func (self *Layout) MoveFocus(delta int) {
	n := len(self.Buttons)
	if n == 0 {
		return
	}
	self.Focus = ((self.Focus+delta)%n + n) % n
}

func buildMainMenu(w, h int, qr string) *Layout {
	l := &Layout{Screen: ScreenMainMenu, Width: w, Height: h, Focus: 0}
	l.Labels = append(l.Labels, &Label{Name: WidgetTitle, Text: "Hardware Monitor", Rect: image.Rect(10, 8, w-10, 32)})
	l.Buttons = append(l.Buttons,
		&Button{Name: WidgetPerformance, Text: "Performance", Rect: image.Rect(20, 50, 200, 95), Target: ScreenPerformanceMetrics},
		&Button{Name: WidgetMedia, Text: "Media", Rect: image.Rect(20, 115, 200, 160), Target: ScreenMediaControls},
	)
	if qr != "" {
		l.QR = qr
		l.QRRect = image.Rect(w-100, 50, w-10, 140)
	}
	return l
}

func buildPerformance(w, h int) *Layout {
	l := &Layout{Screen: ScreenPerformanceMetrics, Width: w, Height: h, Focus: -1}
	l.Buttons = append(l.Buttons, backButton())
	l.Labels = append(l.Labels,
		&Label{Name: WidgetClock, Rect: image.Rect(90, 10, 200, 26)},
		&Label{Name: WidgetPower, Rect: image.Rect(210, 10, w-10, 26)},
		&Label{Name: WidgetTempA, Rect: image.Rect(90, 30, 200, 46)},
		&Label{Name: WidgetTempB, Rect: image.Rect(210, 30, w-10, 46)},
		&Label{Name: WidgetNetwork, Rect: image.Rect(10, 60, w-10, 76)},
	)
	l.Bars = append(l.Bars,
		&Bar{Name: WidgetUsageA, Text: "CPU", Min: 0, Max: 100, Rect: image.Rect(60, 100, w-10, 124)},
		&Bar{Name: WidgetUsageB, Text: "GPU", Min: 0, Max: 100, Rect: image.Rect(60, 140, w-10, 164)},
		&Bar{Name: WidgetQuantity, Text: "MEM", Min: 0, Max: 16, Rect: image.Rect(60, 180, w-10, 204)},
	)
	return l
}

func buildMedia(w, h int) *Layout {
	l := &Layout{Screen: ScreenMediaControls, Width: w, Height: h, Focus: -1}
	l.Labels = append(l.Labels, &Label{Name: WidgetTitle, Text: "Media", Rect: image.Rect(90, 10, w-10, 34)})
	l.Buttons = append(l.Buttons,
		backButton(),
		&Button{Name: WidgetMediaPrev, Text: "|<", Rect: image.Rect(20, 100, 100, 160), Action: "previous"},
		&Button{Name: WidgetMediaPlay, Text: ">||", Rect: image.Rect(120, 100, 200, 160), Action: "play-pause"},
		&Button{Name: WidgetMediaNext, Text: ">|", Rect: image.Rect(220, 100, 300, 160), Action: "next"},
	)
	return l
}

func backButton() *Button {
	return &Button{Name: WidgetBack, Text: "< Back", Rect: image.Rect(10, 8, 80, 40), Target: ScreenMainMenu}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
