package mvreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderGridSizes(t *testing.T) {
	var panels [4]Panel
	_, err := RenderGrid(panels, 0, 400)
	assert.Error(t, err)
	_, err = RenderGrid(panels, 100, 100)
	assert.Error(t, err)

	svg, err := RenderGrid(panels, 400, 400)
	require.NoError(t, err)
	// four frames and no legends for empty panels
	assert.Len(t, svg.Rects, 4)
	assert.Empty(t, svg.Circles)
}

func TestPanelBounds(t *testing.T) {
	p := Panel{ScatterX: []float64{1, 3}, ScatterY: []float64{10, 10}}
	xmin, xmax, ymin, ymax := p.bounds()
	assert.Equal(t, 1.0, xmin)
	assert.Equal(t, 3.0, xmax)
	// flat data is widened so the mapping never divides by zero
	assert.Less(t, ymin, 9.5)
	assert.Greater(t, ymax, 10.5)

	b := &Band{X: []float64{0, 5}, Lower: []float64{-4, -2}, Upper: []float64{20, 30}}
	p.Prediction = b
	xmin, xmax, ymin, ymax = p.bounds()
	assert.Equal(t, 0.0, xmin)
	assert.Equal(t, 5.0, xmax)
	assert.Less(t, ymin, -4.0)
	assert.Greater(t, ymax, 30.0)
}

func TestTickLabel(t *testing.T) {
	assert.Equal(t, "1.2B", tickLabel(1.2e9))
	assert.Equal(t, "350.0M", tickLabel(3.5e8))
	assert.Equal(t, "45k", tickLabel(45000))
	assert.Equal(t, "150", tickLabel(150))
	assert.Equal(t, "7.5", tickLabel(7.5))
	assert.Equal(t, "-2.5M", tickLabel(-2.5e6))
}
