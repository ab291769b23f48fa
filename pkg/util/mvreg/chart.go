package mvreg

import (
	"fmt"
	"math"
	"strconv"

	"github.com/richard-senior/mvreg/pkg/util"
	"gonum.org/v1/gonum/floats"
)

const (
	ticksPerAxis = 5

	padLeft   = 60.0
	padRight  = 15.0
	padTop    = 30.0
	padBottom = 45.0

	frameStyle      = "fill: white; stroke: #444444; stroke-width: 1;"
	gridStyle       = "stroke: #dddddd; stroke-width: 0.5;"
	tickStyle       = "stroke: #444444; stroke-width: 1;"
	scatterStyle    = "fill: #1f77b4; fill-opacity: 0.6; stroke: none;"
	fitStyle        = "fill: none; stroke: blue; stroke-width: 1.5; stroke-opacity: 0.9;"
	confidenceStyle = "fill: blue; fill-opacity: 0.3; stroke: none;"
	predictionStyle = "fill: none; stroke: blue; stroke-width: 1; stroke-opacity: 0.5; stroke-dasharray: 4,3;"
	legendBoxStyle  = "fill: white; fill-opacity: 0.5; stroke: #cccccc; stroke-width: 0.5;"
	titleStyle      = "font-size: 13px; font-family: Arial; fill: black;"
	labelStyle      = "font-size: 12px; font-family: Arial; fill: black;"
	smallStyle      = "font-size: 10px; font-family: Arial; fill: #333333;"
)

// Panel is everything drawn in one cell of the grid
type Panel struct {
	Title    string // e.g. Test Set Loss:12.34
	Legend   string // scatter legend entry
	FitLabel string // fit line legend entry
	XLabel   string // empty for no label
	YLabel   string

	HideXTicks  bool
	HideYTicks  bool
	LegendRight bool

	ScatterX, ScatterY []float64
	LineX, LineY       []float64
	Confidence         *Band
	Prediction         *Band
}

// bounds returns the data extent of everything the panel draws
func (p *Panel) bounds() (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	grow := func(xs, ys []float64) {
		if len(xs) > 0 {
			xmin = math.Min(xmin, floats.Min(xs))
			xmax = math.Max(xmax, floats.Max(xs))
		}
		if len(ys) > 0 {
			ymin = math.Min(ymin, floats.Min(ys))
			ymax = math.Max(ymax, floats.Max(ys))
		}
	}
	grow(p.ScatterX, p.ScatterY)
	grow(p.LineX, p.LineY)
	for _, b := range []*Band{p.Confidence, p.Prediction} {
		if b != nil {
			grow(b.X, b.Lower)
			grow(nil, b.Upper)
		}
	}
	if math.IsInf(xmin, 0) {
		xmin, xmax = 0, 1
	}
	if math.IsInf(ymin, 0) {
		ymin, ymax = 0, 1
	}
	if xmax == xmin {
		xmin, xmax = xmin-1, xmax+1
	}
	if ymax == ymin {
		ymin, ymax = ymin-1, ymax+1
	}
	// breathing room above and below
	pad := (ymax - ymin) * 0.05
	return xmin, xmax, ymin - pad, ymax + pad
}

// plotArea maps data coordinates into one panel's pixel rectangle
type plotArea struct {
	left, top, width, height float64
	xmin, xmax, ymin, ymax   float64
}

func (a *plotArea) px(x float64) float64 {
	return a.left + (x-a.xmin)/(a.xmax-a.xmin)*a.width
}

func (a *plotArea) py(y float64) float64 {
	return a.top + a.height - (y-a.ymin)/(a.ymax-a.ymin)*a.height
}

func (a *plotArea) points(xs, ys []float64) []*util.Point {
	n := min(len(xs), len(ys))
	ret := make([]*util.Point, n)
	for i := 0; i < n; i++ {
		ret[i] = util.NewPoint(a.px(xs[i]), a.py(ys[i]))
	}
	return ret
}

// RenderGrid draws four panels as a 2x2 grid, panels given row by row
func RenderGrid(panels [4]Panel, width, height int) (*util.SVG, error) {
	svg, err := util.NewBlankSVG(width, height)
	if err != nil {
		return nil, err
	}
	svg.Name = "mvreg"

	cellW, cellH := float64(width)/2, float64(height)/2
	if cellW-padLeft-padRight < 20 || cellH-padTop-padBottom < 20 {
		return nil, fmt.Errorf("chart %dx%d is too small for a 2x2 grid", width, height)
	}

	for i := range panels {
		row, col := i/2, i%2
		if err := renderPanel(svg, &panels[i], fmt.Sprintf("p%d%d", row, col),
			float64(col)*cellW, float64(row)*cellH, cellW, cellH); err != nil {
			return nil, fmt.Errorf("panel (%d,%d): %w", row, col, err)
		}
	}
	return svg, nil
}

func renderPanel(svg *util.SVG, p *Panel, id string, x0, y0, w, h float64) error {
	xmin, xmax, ymin, ymax := p.bounds()
	a := &plotArea{
		left:   x0 + padLeft,
		top:    y0 + padTop,
		width:  w - padLeft - padRight,
		height: h - padTop - padBottom,
		xmin:   xmin, xmax: xmax, ymin: ymin, ymax: ymax,
	}

	svg.AddRect(a.left, a.top, a.width, a.height, frameStyle)
	renderTicks(svg, p, id, a)

	if p.Confidence != nil && len(p.Confidence.X) >= 2 {
		band, err := bandPolygon(a, p.Confidence, id+"_confidence")
		if err != nil {
			return err
		}
		band.Style = confidenceStyle
		svg.AddPath(band)
	}
	if p.Prediction != nil && len(p.Prediction.X) >= 2 {
		band, err := bandPolygon(a, p.Prediction, id+"_prediction")
		if err != nil {
			return err
		}
		band.Style = predictionStyle
		svg.AddPath(band)
	}
	if len(p.LineX) > 0 {
		fit, err := util.NewPathFromPoints(a.points(p.LineX, p.LineY), id+"_fit")
		if err != nil {
			return err
		}
		fit.Style = fitStyle
		svg.AddPath(fit)
	}
	for _, pt := range a.points(p.ScatterX, p.ScatterY) {
		svg.AddCircle(pt.X, pt.Y, 2.5, scatterStyle)
	}

	if p.Title != "" {
		t, err := svg.AddText(id+"_title", p.Title, titleStyle, int(a.left+a.width/2), int(y0+padTop-10))
		if err != nil {
			return err
		}
		t.Anchor = "middle"
	}
	if p.XLabel != "" {
		t, err := svg.AddText(id+"_xlabel", p.XLabel, labelStyle, int(a.left+a.width/2), int(a.top+a.height+35))
		if err != nil {
			return err
		}
		t.Anchor = "middle"
	}
	if p.YLabel != "" {
		lx, ly := int(x0+15), int(a.top+a.height/2)
		t, err := svg.AddText(id+"_ylabel", p.YLabel, labelStyle, lx, ly)
		if err != nil {
			return err
		}
		t.Anchor = "middle"
		t.Rotate = -90
	}
	return renderLegend(svg, p, id, a)
}

// bandPolygon traces the upper edge left to right and the lower edge back
func bandPolygon(a *plotArea, b *Band, id string) (*util.Path, error) {
	upper := a.points(b.X, b.Upper)
	lower := a.points(b.X, b.Lower)
	pts := make([]*util.Point, 0, len(upper)+len(lower))
	pts = append(pts, upper...)
	for i := len(lower) - 1; i >= 0; i-- {
		pts = append(pts, lower[i])
	}
	return util.NewPolygonFromPoints(pts, id)
}

func renderTicks(svg *util.SVG, p *Panel, id string, a *plotArea) {
	for i := 0; i < ticksPerAxis; i++ {
		f := float64(i) / float64(ticksPerAxis-1)

		x := a.xmin + f*(a.xmax-a.xmin)
		sx := a.px(x)
		svg.AddLine(sx, a.top, sx, a.top+a.height, gridStyle)
		svg.AddLine(sx, a.top+a.height, sx, a.top+a.height+4, tickStyle)
		if !p.HideXTicks {
			if t, err := svg.AddText(fmt.Sprintf("%s_xtick%d", id, i), tickLabel(x), smallStyle, int(sx), int(a.top+a.height+16)); err == nil {
				t.Anchor = "middle"
			}
		}

		y := a.ymin + f*(a.ymax-a.ymin)
		sy := a.py(y)
		svg.AddLine(a.left, sy, a.left+a.width, sy, gridStyle)
		svg.AddLine(a.left-4, sy, a.left, sy, tickStyle)
		if !p.HideYTicks {
			if t, err := svg.AddText(fmt.Sprintf("%s_ytick%d", id, i), tickLabel(y), smallStyle, int(a.left-6), int(sy+3)); err == nil {
				t.Anchor = "end"
			}
		}
	}
}

// tickLabel keeps labels short across market values in the hundreds of millions
func tickLabel(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e9:
		return strconv.FormatFloat(v/1e9, 'f', 1, 64) + "B"
	case abs >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 1, 64) + "M"
	case abs >= 1e4:
		return strconv.FormatFloat(v/1e3, 'f', 0, 64) + "k"
	case abs >= 100:
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func renderLegend(svg *util.SVG, p *Panel, id string, a *plotArea) error {
	var entries []string
	if p.Legend != "" {
		entries = append(entries, p.Legend)
	}
	if p.FitLabel != "" {
		entries = append(entries, p.FitLabel)
	}
	if len(entries) == 0 {
		return nil
	}

	const lineH, boxW = 15.0, 120.0
	boxH := lineH*float64(len(entries)) + 6
	bx := a.left + 6
	if p.LegendRight {
		bx = a.left + a.width - boxW - 6
	}
	by := a.top + 6
	svg.AddRect(bx, by, boxW, boxH, legendBoxStyle)

	for i, entry := range entries {
		cy := by + 3 + lineH*float64(i) + lineH/2
		if i == 0 && p.Legend != "" {
			svg.AddCircle(bx+10, cy, 2.5, scatterStyle)
		} else {
			svg.AddLine(bx+4, cy, bx+16, cy, fitStyle)
		}
		name := fmt.Sprintf("%s_legend%d", id, i)
		if _, err := svg.AddText(name, entry, smallStyle, int(bx+22), int(cy+3)); err != nil {
			return err
		}
	}
	return nil
}
