package util

import (
	"fmt"
	"regexp"
	"strings"
)

///////////////////////////////////////////////////////////////////////////////
/// POINT
///////////////////////////////////////////////////////////////////////////////

// Point represents a 2D point with X and Y coordinates
type Point struct {
	X, Y float64
}

func NewPoint(x float64, y float64) *Point {
	return &Point{X: x, Y: y}
}

///////////////////////////////////////////////////////////////////////////////
/// PATH
///////////////////////////////////////////////////////////////////////////////

var (
	pathTagRegex = regexp.MustCompile(`(?i)<path[^>]*>`)
	pathDRegex   = regexp.MustCompile(`(?i)\sd\s*=\s*["']([^"']*)["']`)
	pathIDRegex  = regexp.MustCompile(`(?i)\sid\s*=\s*["']([^"']*)["']`)
	pathStyleRe  = regexp.MustCompile(`(?i)\sstyle\s*=\s*["']([^"']*)["']`)
)

/**
* Represents the information contained in a single SVG '<path>' tag
 */
type Path struct {
	ID          string
	Points      []*Point
	PathTag     string
	CommandsStr string
	Style       string
	IsClosed    bool
}

// NewPathFromPoints builds an open polyline through the given points
func NewPathFromPoints(points []*Point, id string) (*Path, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("must supply an array of Points to this constructor")
	}
	if id == "" {
		id = "pathFromPoints"
	}

	var commandsStr strings.Builder
	commandsStr.WriteString(fmt.Sprintf("M %.2f,%.2f", points[0].X, points[0].Y))
	for i := 1; i < len(points); i++ {
		commandsStr.WriteString(fmt.Sprintf(" L %.2f,%.2f", points[i].X, points[i].Y))
	}

	return &Path{
		ID:          id,
		Points:      points,
		CommandsStr: commandsStr.String(),
	}, nil
}

// NewPolygonFromPoints builds a closed path, used for filled regions
func NewPolygonFromPoints(points []*Point, id string) (*Path, error) {
	if len(points) < 3 {
		return nil, fmt.Errorf("a polygon needs at least 3 points, got %d", len(points))
	}
	ret, err := NewPathFromPoints(points, id)
	if err != nil {
		return nil, err
	}
	ret.CommandsStr += " Z"
	ret.IsClosed = true
	return ret, nil
}

// Constructor from an SVG <path ... /> tag
func NewPathFromSvgTag(tag string) (*Path, error) {
	if tag == "" {
		return nil, fmt.Errorf("tag cannot be empty")
	}
	ret := &Path{PathTag: tag}
	if err := ret.ParseSvgPathTag(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (p *Path) ParseSvgPathTag() error {
	if p.PathTag == "" {
		return fmt.Errorf("Path object must have a populated PathTag field before this method is called")
	}
	if !pathTagRegex.MatchString(p.PathTag) {
		return fmt.Errorf("invalid SVG path tag format")
	}

	dMatches := pathDRegex.FindStringSubmatch(p.PathTag)
	if len(dMatches) < 2 || strings.TrimSpace(dMatches[1]) == "" {
		return fmt.Errorf("no valid path commands found")
	}
	p.CommandsStr = dMatches[1]

	if idMatches := pathIDRegex.FindStringSubmatch(p.PathTag); len(idMatches) >= 2 {
		p.ID = idMatches[1]
	}
	if styleMatches := pathStyleRe.FindStringSubmatch(p.PathTag); len(styleMatches) >= 2 {
		p.Style = styleMatches[1]
	}

	cmds := strings.TrimSpace(p.CommandsStr)
	p.IsClosed = strings.HasSuffix(cmds, "Z") || strings.HasSuffix(cmds, "z")
	return nil
}

func (p *Path) ToPathTag() (string, error) {
	if p.PathTag != "" {
		return p.PathTag, nil
	}
	if p.CommandsStr == "" {
		return "", fmt.Errorf("Path object must have a populated PathTag field or CommandsStr field before this method is called")
	}
	if p.Style != "" {
		p.PathTag = fmt.Sprintf(`<path id="%s" d="%s" style="%s" />`, p.ID, p.CommandsStr, p.Style)
	} else {
		p.PathTag = fmt.Sprintf(`<path id="%s" d="%s" />`, p.ID, p.CommandsStr)
	}
	return p.PathTag, nil
}

///////////////////////////////////////////////////////////////////////////////
/// PATHS
///////////////////////////////////////////////////////////////////////////////

// Holds information about paths, which is an array of Path structures
type Paths struct {
	Paths []*Path
}

func NewPaths(paths []*Path) (*Paths, error) {
	ret := &Paths{}
	if len(paths) == 0 {
		ret.Paths = []*Path{}
	} else {
		ret.Paths = paths
	}
	return ret, nil
}

func (p *Paths) NumPaths() int {
	if p.Paths == nil {
		return 0
	}
	return len(p.Paths)
}

func (p *Paths) AddPath(path *Path) {
	p.Paths = append(p.Paths, path)
}

// FindByID returns the first path with the given id, or nil
func (p *Paths) FindByID(id string) *Path {
	for _, path := range p.Paths {
		if path.ID == id {
			return path
		}
	}
	return nil
}

// Renders all paths in this object to a linebreak delimited string
// of SVG <path> tags
func (p *Paths) ToSVG() (string, error) {
	var b strings.Builder
	for _, path := range p.Paths {
		tag, err := path.ToPathTag()
		if err != nil {
			return "", err
		}
		b.WriteString(tag)
		b.WriteString("\n")
	}
	return b.String(), nil
}
