package util

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

///////////////////////////////////////////////////////////////////////////////
/// SVGEmbeddedText
///////////////////////////////////////////////////////////////////////////////

// Holds information about text that is embedded into SVG files
type SVGEmbeddedText struct {
	X, Y    int
	Name    string
	Content string
	Style   string
	Anchor  string  // start, middle or end
	Rotate  float64 // degrees about (X, Y)
}

func NewSVGEmbeddedText(name, text, style string, x, y int) (*SVGEmbeddedText, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if style == "" {
		style = "font-size: 12px; font-family: Arial; fill: black;"
	}
	return &SVGEmbeddedText{
		X:       x,
		Y:       y,
		Name:    name,
		Content: text,
		Style:   style,
		Anchor:  "start",
	}, nil
}

func (t *SVGEmbeddedText) ToSVG() string {
	var escaped bytes.Buffer
	// EscapeText only fails if the writer does
	_ = xml.EscapeText(&escaped, []byte(t.Content))

	transform := ""
	if t.Rotate != 0 {
		transform = fmt.Sprintf(` transform="rotate(%.1f %d %d)"`, t.Rotate, t.X, t.Y)
	}
	return fmt.Sprintf(`<text id="%s" x="%d" y="%d" text-anchor="%s" style="%s"%s>%s</text>`,
		t.Name, t.X, t.Y, t.Anchor, t.Style, transform, escaped.String())
}

///////////////////////////////////////////////////////////////////////////////
/// SVG
///////////////////////////////////////////////////////////////////////////////

const SvgHeader string = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<svg width="%d" height="%d" viewBox="0 0 %d %d"
    version="1.1"
	xmlns="http://www.w3.org/2000/svg"
	xmlns:svg="http://www.w3.org/2000/svg"
	xmlns:xlink="http://www.w3.org/1999/xlink">
`
const SvgFooter string = `
</svg>
`

// An object for holding and writing SVG documents.
// Elements are drawn in the order rects, paths, lines, circles, text.
type SVG struct {
	Filepath      string
	Name          string
	Rects         []*Rect
	Paths         *Paths
	Lines         []*Line
	Circles       []*Circle
	Text          []*SVGEmbeddedText
	Width, Height int
}

func NewBlankSVG(width, height int) (*SVG, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("svg dimensions must be positive, got %dx%d", width, height)
	}
	paths, err := NewPaths([]*Path{})
	if err != nil {
		return nil, err
	}
	return &SVG{
		Name:   "blank",
		Paths:  paths,
		Width:  width,
		Height: height,
	}, nil
}

// NewSVGFromFile reads an SVG file from the given filepath, keeping its <path> elements
func NewSVGFromFile(filePath string) (*SVG, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SVG file: %w", err)
	}

	baseName := filepath.Base(filePath)
	name := baseName[:len(baseName)-len(filepath.Ext(baseName))]
	return NewSVGFromContent(name, string(content))
}

var (
	svgWidthRegex  = regexp.MustCompile(`<svg[^>]*\swidth="(\d+)"`)
	svgHeightRegex = regexp.MustCompile(`<svg[^>]*\sheight="(\d+)"`)
)

// Converts the given svg file content into an SVG holding its paths
func NewSVGFromContent(name string, svgContent string) (*SVG, error) {
	matches := pathTagRegex.FindAllString(svgContent, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no <path> tags found in SVG content")
	}

	width, height := 1, 1
	if m := svgWidthRegex.FindStringSubmatch(svgContent); len(m) > 1 {
		fmt.Sscanf(m[1], "%d", &width)
	}
	if m := svgHeightRegex.FindStringSubmatch(svgContent); len(m) > 1 {
		fmt.Sscanf(m[1], "%d", &height)
	}

	ret, err := NewBlankSVG(width, height)
	if err != nil {
		return nil, err
	}
	ret.Name = name

	for _, pathTag := range matches {
		path, err := NewPathFromSvgTag(pathTag)
		if err != nil {
			continue
		}
		ret.Paths.AddPath(path)
	}

	if ret.Paths.NumPaths() == 0 {
		return nil, fmt.Errorf("failed to parse any valid paths from SVG content")
	}
	return ret, nil
}

func (s *SVG) AddText(name, text, style string, x, y int) (*SVGEmbeddedText, error) {
	t, err := NewSVGEmbeddedText(name, text, style, x, y)
	if err != nil {
		return nil, err
	}
	s.Text = append(s.Text, t)
	return t, nil
}

func (s *SVG) AddPath(path *Path) {
	s.Paths.AddPath(path)
}

func (s *SVG) AddLine(x1, y1, x2, y2 float64, style string) {
	s.Lines = append(s.Lines, &Line{Start: Point{X: x1, Y: y1}, End: Point{X: x2, Y: y2}, Style: style})
}

func (s *SVG) AddCircle(x, y, r float64, style string) {
	s.Circles = append(s.Circles, &Circle{Center: Point{X: x, Y: y}, Radius: r, Style: style})
}

func (s *SVG) AddRect(x, y, w, h float64, style string) {
	s.Rects = append(s.Rects, &Rect{X: x, Y: y, Width: w, Height: h, Style: style})
}

// FindText returns the first text element with the given name, or nil
func (s *SVG) FindText(name string) *SVGEmbeddedText {
	for _, t := range s.Text {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func (s *SVG) ToSVGFile(filePath string) error {
	svgContent, err := s.ToSVG()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", filePath, err)
		}
	}
	if err := os.WriteFile(filePath, []byte(svgContent), 0644); err != nil {
		return fmt.Errorf("failed to write svg %s: %w", filePath, err)
	}
	s.Filepath = filePath
	return nil
}

func (s *SVG) ToSVG() (string, error) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(SvgHeader, s.Width, s.Height, s.Width, s.Height))

	for _, r := range s.Rects {
		b.WriteString(r.ToSVG())
		b.WriteString("\n")
	}

	allpaths, err := s.Paths.ToSVG()
	if err != nil {
		return "", err
	}
	b.WriteString(allpaths)

	for _, l := range s.Lines {
		b.WriteString(l.ToSVG())
		b.WriteString("\n")
	}
	for _, c := range s.Circles {
		b.WriteString(c.ToSVG())
		b.WriteString("\n")
	}
	for _, t := range s.Text {
		b.WriteString(t.ToSVG())
		b.WriteString("\n")
	}

	b.WriteString(SvgFooter)
	return b.String(), nil
}
