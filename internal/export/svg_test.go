package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/san-kum/demcontact/internal/viz"
)

func TestCanvasToSVG(t *testing.T) {
	c := viz.NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)

	svg := CanvasToSVG(c, 10)
	assert.Equal(t, 2, strings.Count(svg, "<circle"))
	assert.Contains(t, svg, `width="40" height="40"`)
	assert.Contains(t, svg, `cx="5.0" cy="5.0"`)
	assert.Contains(t, svg, `cx="35.0" cy="35.0"`)

	assert.Empty(t, CanvasToSVG(nil, 1))
}

func TestSeriesToSVG(t *testing.T) {
	svg := SeriesToSVG([]float64{0, 1, 2}, []float64{1, 3, 2}, 120, 60, "#00ff00", "kinetic <J>")
	assert.True(t, strings.HasPrefix(svg, "<?xml"))
	assert.Contains(t, svg, "kinetic &lt;J&gt;")
	assert.Equal(t, 2, strings.Count(svg, " L"))

	assert.Empty(t, SeriesToSVG([]float64{0}, []float64{1}, 10, 10, "red", ""))
	assert.Empty(t, SeriesToSVG([]float64{0, 1}, []float64{1}, 10, 10, "red", ""))
}
