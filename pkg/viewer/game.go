// Package viewer renders the active waveforms with ebiten and drives the
// playback dispatcher from the game loop.
package viewer

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/sudorandom/physio-stream/pkg/config"
	"github.com/sudorandom/physio-stream/pkg/feed"
	"github.com/sudorandom/physio-stream/pkg/vitals"
	"github.com/sudorandom/physio-stream/pkg/waveform"
)

var (
	colorBackground   = color.RGBA{12, 14, 20, 255}
	colorPanel        = color.RGBA{0, 0, 0, 100}
	colorPanelBorder  = color.RGBA{36, 42, 53, 255}
	colorGrid         = color.RGBA{40, 46, 58, 255}
	colorPathological = color.RGBA{239, 68, 68, 255}
)

// FeedStatus is what the status bar shows about the network side.
type FeedStatus interface {
	Connected() bool
	Stats() feed.Stats
}

type Game struct {
	Width, Height int

	player   *waveform.Player
	controls *Controls
	status   FeedStatus

	window             float64
	pauseWhenUnfocused bool
	showDiagnostics    bool
	visible            bool

	fontSource *text.GoTextFaceSource
	monoSource *text.GoTextFaceSource

	// Quit ends the game loop once closed.
	Quit <-chan struct{}

	now func() time.Time
}

func NewGame(cfg config.ViewerConfig, player *waveform.Player, controls *Controls, status FeedStatus) *Game {
	s, _ := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	m, _ := text.NewGoTextFaceSource(bytes.NewReader(gomono.TTF))

	return &Game{
		Width:              cfg.Width,
		Height:             cfg.Height,
		player:             player,
		controls:           controls,
		status:             status,
		window:             cfg.DisplayWindowSec,
		pauseWhenUnfocused: cfg.PauseWhenUnfocused,
		showDiagnostics:    cfg.ShowDiagnostics,
		visible:            true,
		fontSource:         s,
		monoSource:         m,
		now:                time.Now,
	}
}

func (g *Game) Update() error {
	select {
	case <-g.Quit:
		return ebiten.Termination
	default:
	}

	now := g.now()
	g.handleInput(now)
	g.frame(ebiten.IsWindowMinimized(), ebiten.IsFocused(), now)
	return nil
}

// frame decides whether the waveforms are on screen and runs one step. The
// game loop has to keep running while unfocused for a focus change to be
// seen here.
func (g *Game) frame(minimized, focused bool, now time.Time) int {
	visible := !minimized && (focused || !g.pauseWhenUnfocused)
	return g.step(visible, now)
}

// step forwards visibility changes to the player and runs one dispatch tick.
func (g *Game) step(visible bool, now time.Time) int {
	if visible != g.visible {
		g.visible = visible
		g.player.SetVisible(visible, now)
	}
	return g.player.Tick(now)
}

var signalKeys = []ebiten.Key{ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4, ebiten.Key5}

func (g *Game) handleInput(now time.Time) {
	for i, k := range signalKeys {
		if i < len(vitals.Catalog) && inpututil.IsKeyJustPressed(k) {
			g.controls.Toggle(vitals.Catalog[i].ID, now)
		}
	}
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowUp):
		g.controls.AdjustAmplitude(amplitudeStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowDown):
		g.controls.AdjustAmplitude(-amplitudeStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowRight):
		g.controls.AdjustHeartRate(heartRateStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft):
		g.controls.AdjustHeartRate(-heartRateStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyA):
		g.controls.ToggleAutoregulation()
	case inpututil.IsKeyJustPressed(ebiten.KeyD):
		g.showDiagnostics = !g.showDiagnostics
	}
}

func (g *Game) Layout(w, h int) (int, int) { return g.Width, g.Height }

func (g *Game) fontSize() float64 {
	if g.Width > 2000 {
		return 28
	}
	return 14
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(colorBackground)
	fontSize := g.fontSize()
	margin := fontSize * 1.5
	barH := fontSize * 2.5

	g.drawStatus(screen, margin, fontSize)

	ids := g.controls.Active()
	area := rect{X: margin, Y: margin + barH, W: float64(g.Width) - 2*margin, H: float64(g.Height) - 2*margin - barH}
	for i, r := range panelRects(len(ids), area, margin/2) {
		g.drawPanel(screen, ids[i], r, fontSize)
	}
}

func (g *Game) drawStatus(screen *ebiten.Image, margin, fontSize float64) {
	if g.fontSource == nil {
		return
	}
	face := &text.GoTextFace{Source: g.fontSource, Size: fontSize}

	mode := "Normal"
	if !g.controls.Autoregulation() {
		mode = "TBI"
	}
	conn := "disconnected"
	if g.status != nil && g.status.Connected() {
		conn = "connected"
	}
	line := fmt.Sprintf("Feed %s | Amplitude %.0f%% | Heart rate %d BPM | Autoregulation %s | [1-5] signals [up/down] amplitude [left/right] rate [A] autoregulation [D] diagnostics",
		conn, g.controls.Amplitude(), g.controls.HeartRate(), mode)

	op := &text.DrawOptions{}
	op.GeoM.Translate(margin, margin)
	op.ColorScale.Scale(1, 1, 1, 0.7)
	text.Draw(screen, line, face, op)

	if g.showDiagnostics {
		small := &text.GoTextFace{Source: g.fontSource, Size: fontSize * 0.8}
		cyclesOp := &text.DrawOptions{}
		cyclesOp.GeoM.Translate(margin, margin+fontSize*1.3)
		cyclesOp.ColorScale.Scale(1, 1, 1, 0.5)
		text.Draw(screen, g.cycleSummary(), small, cyclesOp)
	}
}

// cycleSummary describes the closed cycles in the shared history: how many,
// how many were rejected, and the newest one. It also reports batches dropped
// for inactive channels.
func (g *Game) cycleSummary() string {
	cycles := g.player.RecentCycles(-1)
	closed, rejected := 0, 0
	var last *waveform.Cycle
	for i := range cycles {
		c := &cycles[i]
		if !c.Closed {
			continue
		}
		closed++
		if c.Duration <= 0 {
			rejected++
		}
		last = c
	}
	line := fmt.Sprintf("Cycles %d (%d rejected) | ignored batches %d", closed, rejected, g.player.Ignored())
	if last != nil {
		id := last.ID
		if len(id) > 8 {
			id = id[:8]
		}
		line += fmt.Sprintf(" | last %s %s: %d pts in %v", last.Channel, id, len(last.Points), last.Duration.Round(time.Millisecond))
	}
	return line
}

func (g *Game) drawPanel(screen *ebiten.Image, id string, r rect, fontSize float64) {
	sig, _ := vitals.Lookup(id)
	points := g.player.DisplayBuffer(id)
	visible := vitals.Visible(points, g.window)
	readout := vitals.Evaluate(id, visible)

	traceColor, _ := parseHexColor(sig.Color)
	if len(points) > 0 {
		if d, ok := g.player.Diagnostics(id); ok && d.Color != "" {
			traceColor, _ = parseHexColor(d.Color)
		}
	}

	vector.DrawFilledRect(screen, float32(r.X), float32(r.Y), float32(r.W), float32(r.H), colorPanel, false)
	border := colorPanelBorder
	if readout.Pathological {
		border = colorPathological
	}
	vector.StrokeRect(screen, float32(r.X), float32(r.Y), float32(r.W), float32(r.H), 1, border, false)
	vector.DrawFilledRect(screen, float32(r.X), float32(r.Y), float32(r.W), 3, traceColor, false)

	header := fontSize * 2
	plot := rect{X: r.X + fontSize, Y: r.Y + header, W: r.W - 2*fontSize, H: r.H - header - fontSize*1.5}
	if plot.W <= 0 || plot.H <= 0 {
		return
	}
	scale := newPlotScale(visible, g.window, plot)

	g.drawGrid(screen, scale)
	g.drawTrace(screen, visible, scale, traceColor)

	if g.fontSource == nil {
		return
	}
	face := &text.GoTextFace{Source: g.fontSource, Size: fontSize}
	titleOp := &text.DrawOptions{}
	titleOp.GeoM.Translate(r.X+fontSize, r.Y+fontSize/2)
	titleOp.ColorScale.Scale(1, 1, 1, 0.8)
	text.Draw(screen, sig.Label, face, titleOp)

	if readout.Text != "" {
		valueFace := &text.GoTextFace{Source: g.monoSource, Size: fontSize}
		tw, _ := text.Measure(readout.Text, valueFace, 0)
		x := r.X + r.W - tw - fontSize
		if readout.Pathological {
			vector.DrawFilledRect(screen, float32(x-4), float32(r.Y+fontSize/2-2), float32(tw+8), float32(fontSize+4), colorPathological, false)
		}
		valueOp := &text.DrawOptions{}
		valueOp.GeoM.Translate(x, r.Y+fontSize/2)
		text.Draw(screen, readout.Text, valueFace, valueOp)
	}

	axisFace := &text.GoTextFace{Source: g.fontSource, Size: fontSize * 0.8}
	axisOp := &text.DrawOptions{}
	axisOp.GeoM.Translate(plot.X, plot.Y+plot.H+fontSize*0.3)
	axisOp.ColorScale.Scale(1, 1, 1, 0.5)
	text.Draw(screen, sig.AxisLabel, axisFace, axisOp)

	if g.showDiagnostics {
		if d, ok := g.player.Diagnostics(id); ok {
			diag := fmt.Sprintf("%.0f pts/s | %d pending | avg queue %.0f | shed %d", d.Speed, d.PendingPoints, d.AveragePressure, d.ShedPoints)
			dw, _ := text.Measure(diag, axisFace, 0)
			diagOp := &text.DrawOptions{}
			diagOp.GeoM.Translate(plot.X+plot.W-dw, plot.Y+plot.H+fontSize*0.3)
			diagOp.ColorScale.Scale(1, 1, 1, 0.5)
			text.Draw(screen, diag, axisFace, diagOp)
		}
	}
}

// drawGrid draws a vertical line every second of signal time and four
// horizontal divisions.
func (g *Game) drawGrid(screen *ebiten.Image, s plotScale) {
	a := s.area
	for x := math.Ceil(s.xMin); x <= s.xMax; x++ {
		px := float32(s.X(x))
		vector.StrokeLine(screen, px, float32(a.Y), px, float32(a.Y+a.H), 1, colorGrid, false)
	}
	for i := 0; i <= 4; i++ {
		py := float32(a.Y + a.H*float64(i)/4)
		vector.StrokeLine(screen, float32(a.X), py, float32(a.X+a.W), py, 1, colorGrid, false)
	}
}

func (g *Game) drawTrace(screen *ebiten.Image, pts []waveform.Point, s plotScale, c color.RGBA) {
	width := float32(1.5)
	if g.Width > 2000 {
		width = 3
	}
	for i := 1; i < len(pts); i++ {
		x0, y0 := s.X(pts[i-1].X), s.Y(pts[i-1].Y)
		x1, y1 := s.X(pts[i].X), s.Y(pts[i].Y)
		if x1 < s.area.X {
			continue
		}
		vector.StrokeLine(screen, float32(x0), float32(y0), float32(x1), float32(y1), width, c, true)
	}
}
