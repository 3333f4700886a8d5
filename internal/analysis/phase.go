package analysis

import (
	"strings"

	"github.com/san-kum/cohortsim/internal/dynamo"
)

type Point struct{ X, Y float64 }

// PhasePortrait2D pairs two state components over a run.
type PhasePortrait2D struct {
	XIndex, YIndex int
	Points         []Point
}

// NewPhasePortrait reads a finished run. It returns nil if either index
// is out of range.
func NewPhasePortrait(res *dynamo.Result, xIdx, yIdx int) *PhasePortrait2D {
	if len(res.States) == 0 || xIdx >= len(res.States[0]) || yIdx >= len(res.States[0]) {
		return nil
	}

	portrait := &PhasePortrait2D{
		XIndex: xIdx,
		YIndex: yIdx,
		Points: make([]Point, 0, len(res.States)),
	}
	for _, x := range res.States {
		portrait.Points = append(portrait.Points, Point{X: x[xIdx], Y: x[yIdx]})
	}
	return portrait
}

// PhasePortraitToASCII converts phase portrait to ASCII art
func PhasePortraitToASCII(portrait *PhasePortrait2D, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	minX, maxX := portrait.Points[0].X, portrait.Points[0].X
	minY, maxY := portrait.Points[0].Y, portrait.Points[0].Y
	for _, p := range portrait.Points {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	// Pools are non-negative, so only pad upward.
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	rangeX *= 1.05
	rangeY *= 1.05

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for _, p := range portrait.Points {
		col := int((p.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((p.Y-minY)/rangeY*float64(height-1))

		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '•'
		}
	}

	// Mark the start of the trajectory.
	start := portrait.Points[0]
	col := int((start.X - minX) / rangeX * float64(width-1))
	row := height - 1 - int((start.Y-minY)/rangeY*float64(height-1))
	if row >= 0 && row < height && col >= 0 && col < width {
		canvas[row][col] = 'o'
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
