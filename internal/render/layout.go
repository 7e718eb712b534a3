package render

// PointsPerCM converts centimetres to PDF points.
const PointsPerCM = 72 / 2.54

// Layout is the fixed page geometry in points, with y measured down from
// the top edge.
type Layout struct {
	PageWidth    float64
	PageHeight   float64
	MarginX      float64
	MarginTop    float64
	MarginBottom float64
}

// A4 returns the default portrait A4 layout with 2cm side and top margins
// and a 2.5cm bottom margin.
func A4() Layout {
	return Layout{
		PageWidth:    595.28,
		PageHeight:   841.89,
		MarginX:      2 * PointsPerCM,
		MarginTop:    2 * PointsPerCM,
		MarginBottom: 2.5 * PointsPerCM,
	}
}

// Cursor is the next baseline position on a page. Page counts from 1.
type Cursor struct {
	Page int
	Y    float64
}

// Start returns the cursor at the top of the first page.
func (l Layout) Start() Cursor {
	return Cursor{Page: 1, Y: l.MarginTop}
}

// ContentWidth is the usable line width.
func (l Layout) ContentWidth() float64 {
	return l.PageWidth - 2*l.MarginX
}

// Bottom is the lowest y a block may reach.
func (l Layout) Bottom() float64 {
	return l.PageHeight - l.MarginBottom
}

// Advance returns where a block of height need should start. When it does
// not fit below c the block moves to the top of the next page and the
// second result is true. A block taller than a page still gets a fresh
// page and overflows it.
func (l Layout) Advance(c Cursor, need float64) (Cursor, bool) {
	if c.Y+need <= l.Bottom() {
		return c, false
	}
	if c.Y == l.MarginTop {
		return c, false
	}
	return Cursor{Page: c.Page + 1, Y: l.MarginTop}, true
}

// FitBox scales a w x h image into a boxW x boxH box keeping its aspect
// ratio. Degenerate sizes yield zero.
func FitBox(w, h, boxW, boxH float64) (float64, float64) {
	if w <= 0 || h <= 0 || boxW <= 0 || boxH <= 0 {
		return 0, 0
	}
	scale := min(boxW/w, boxH/h)
	return w * scale, h * scale
}
