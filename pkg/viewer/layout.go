package viewer

import (
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/sudorandom/physio-stream/pkg/waveform"
)

type rect struct {
	X, Y, W, H float64
}

// panelRects splits the area below the status bar into a grid with one cell
// per channel: one column up to two panels, two columns after that.
func panelRects(n int, area rect, gap float64) []rect {
	if n <= 0 {
		return nil
	}
	cols := 1
	if n > 2 {
		cols = 2
	}
	rows := (n + cols - 1) / cols
	w := (area.W - gap*float64(cols-1)) / float64(cols)
	h := (area.H - gap*float64(rows-1)) / float64(rows)

	out := make([]rect, n)
	for i := range out {
		r, c := i/cols, i%cols
		out[i] = rect{
			X: area.X + float64(c)*(w+gap),
			Y: area.Y + float64(r)*(h+gap),
			W: w,
			H: h,
		}
	}
	return out
}

// plotScale maps signal coordinates into a plot rectangle. The x extent is
// the fixed window ending at the newest point so the trace does not jump
// back as points arrive; y gets 10% padding.
type plotScale struct {
	area       rect
	xMin, xMax float64
	yMin, yMax float64
}

func newPlotScale(visible []waveform.Point, window float64, area rect) plotScale {
	if len(visible) == 0 {
		return plotScale{area: area, xMin: 0, xMax: 1, yMin: 0, yMax: 1}
	}
	latest := visible[len(visible)-1].X
	yMin, yMax := visible[0].Y, visible[0].Y
	for _, p := range visible[1:] {
		yMin = math.Min(yMin, p.Y)
		yMax = math.Max(yMax, p.Y)
	}
	pad := 1.0
	if yMax > yMin {
		pad = (yMax - yMin) * 0.1
	}
	return plotScale{
		area: area,
		xMin: latest - window,
		xMax: latest,
		yMin: yMin - pad,
		yMax: yMax + pad,
	}
}

func (s plotScale) X(x float64) float64 {
	return s.area.X + (x-s.xMin)/(s.xMax-s.xMin)*s.area.W
}

// Y is inverted: larger values are drawn higher.
func (s plotScale) Y(y float64) float64 {
	return s.area.Y + s.area.H - (y-s.yMin)/(s.yMax-s.yMin)*s.area.H
}

var fallbackColor = color.RGBA{136, 136, 136, 255}

// parseHexColor accepts #rgb and #rrggbb.
func parseHexColor(s string) (color.RGBA, bool) {
	s = strings.TrimPrefix(s, "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	default:
		return fallbackColor, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fallbackColor, false
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
}
