package util

import "fmt"

// Represents a straight line from the start point to the end point
type Line struct {
	Start, End Point
	Style      string
}

func (l *Line) ToSVG() string {
	return fmt.Sprintf(`<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" style="%s" />`,
		l.Start.X, l.Start.Y, l.End.X, l.End.Y, l.Style)
}

// A filled or stroked circle, used for scatter markers
type Circle struct {
	Center Point
	Radius float64
	Style  string
}

func (c *Circle) ToSVG() string {
	return fmt.Sprintf(`<circle cx="%.2f" cy="%.2f" r="%.2f" style="%s" />`,
		c.Center.X, c.Center.Y, c.Radius, c.Style)
}

// An axis aligned rectangle
type Rect struct {
	X, Y, Width, Height float64
	Style               string
}

func (r *Rect) ToSVG() string {
	return fmt.Sprintf(`<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" style="%s" />`,
		r.X, r.Y, r.Width, r.Height, r.Style)
}
