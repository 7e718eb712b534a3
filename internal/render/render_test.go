package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/player-dossier/internal/dossier"
)

func charWidth(s string) float64 { return float64(len(s)) }

func collect(text string, width float64) []string {
	var out []string
	for line := range Wrap(text, width, charWidth) {
		out = append(out, line)
	}
	return out
}

func TestWrapIsLossless(t *testing.T) {
	t.Parallel()

	texts := []string{
		"Virat Kohli is an Indian international cricketer who plays for Royal Challengers Bengaluru.",
		"  leading   and trailing\twhitespace\n collapses ",
		"supercalifragilisticexpialidocious short words",
		"one",
	}
	for _, text := range texts {
		for _, width := range []float64{1, 8, 20, 1000} {
			lines := collect(text, width)
			assert.Equal(t, strings.Join(strings.Fields(text), " "), strings.Join(lines, " "), "width %v", width)
			for _, l := range lines {
				if strings.Contains(l, " ") {
					assert.LessOrEqual(t, charWidth(l), width, "multi-word line %q overflows", l)
				}
			}
		}
	}
}

func TestWrapEdges(t *testing.T) {
	t.Parallel()

	assert.Empty(t, collect("", 10))
	assert.Empty(t, collect("   ", 10))
	assert.Equal(t, []string{"aaaaaaaaaaaa", "b"}, collect("aaaaaaaaaaaa b", 5))

	seq := Wrap("a b c d", 3, charWidth)
	var first, second []string
	for l := range seq {
		first = append(first, l)
	}
	for l := range seq {
		second = append(second, l)
	}
	assert.Equal(t, first, second, "sequence restarts")

	var taken []string
	for l := range seq {
		taken = append(taken, l)
		break
	}
	assert.Equal(t, []string{"a b"}, taken)
}

func TestLayoutAdvance(t *testing.T) {
	t.Parallel()

	l := A4()
	start := l.Start()
	assert.Equal(t, Cursor{Page: 1, Y: l.MarginTop}, start)
	assert.InDelta(t, 595.28-4*PointsPerCM, l.ContentWidth(), 0.001)

	c, broke := l.Advance(Cursor{Page: 1, Y: 100}, 14)
	assert.False(t, broke)
	assert.Equal(t, Cursor{Page: 1, Y: 100}, c)

	c, broke = l.Advance(Cursor{Page: 3, Y: l.Bottom() - 10}, 14)
	assert.True(t, broke)
	assert.Equal(t, Cursor{Page: 4, Y: l.MarginTop}, c)

	c, broke = l.Advance(start, l.PageHeight*2)
	assert.False(t, broke, "an oversized block at the top of a page stays there")
	assert.Equal(t, start, c)
}

func TestFitBox(t *testing.T) {
	t.Parallel()

	w, h := FitBox(600, 800, 45, 60)
	assert.InDelta(t, 45, w, 0.001)
	assert.InDelta(t, 60, h, 0.001)

	w, h = FitBox(1000, 500, 45, 60)
	assert.InDelta(t, 45, w, 0.001)
	assert.InDelta(t, 22.5, h, 0.001)

	w, h = FitBox(0, 10, 45, 60)
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 128})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeImage(t *testing.T) {
	t.Parallel()

	out, size, err := NormalizeImage(pngBytes(t, 30, 40))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(30, 40), size)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Width)

	_, _, err = NormalizeImage([]byte("<html>not an image</html>"))
	require.Error(t, err)
}

func sampleDocument() Document {
	return Document{
		Title: "IPL Player Profile: Virat Kohli",
		Fields: []dossier.Field{
			{Label: "Age", Value: "36"},
			{Label: "IPL Current Team", Value: "Royal Challengers Bengaluru"},
		},
		Sections: []dossier.Section{
			{Heading: "Career Summary", Body: "Virat Kohli is an Indian international cricketer."},
		},
		StatsHeading: "ESPN Cricinfo Stats Summary",
		Stats: []dossier.Field{
			{Label: "T20I matches", Value: "125"},
			{Label: "Born", Value: ""},
		},
		Provenance: "Wikipedia: https://en.wikipedia.org/wiki/Virat_Kohli | Retrieved: 2025-03-01T12:00:00Z",
		Created:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderProducesValidPDF(t *testing.T) {
	t.Parallel()

	res, err := New(WithCompression(false)).Render(sampleDocument())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pages)
	assert.True(t, bytes.HasPrefix(res.PDF, []byte("%PDF-")))

	raw := string(res.PDF)
	for _, want := range []string{
		"(IPL Player Profile: Virat Kohli) Tj",
		"(Age: 36) Tj",
		"(Career Summary) Tj",
		"(ESPN Cricinfo Stats Summary) Tj",
		"(T20I matches: 125) Tj",
		"(Source) Tj",
	} {
		assert.Contains(t, raw, want)
	}
	assert.NotContains(t, raw, "(Born: ) Tj", "empty stats are skipped")
	assert.NotContains(t, raw, "/Subtype /Image")
}

func TestRenderIsDeterministic(t *testing.T) {
	t.Parallel()

	r := New()
	a, err := r.Render(sampleDocument())
	require.NoError(t, err)
	b, err := r.Render(sampleDocument())
	require.NoError(t, err)
	assert.Equal(t, a.PDF, b.PDF)
}

func TestRenderWithImage(t *testing.T) {
	t.Parallel()

	doc := sampleDocument()
	doc.Image = pngBytes(t, 60, 80)
	res, err := New(WithCompression(false)).Render(doc)
	require.NoError(t, err)
	assert.Contains(t, string(res.PDF), "/Subtype /Image")
}

func TestRenderIgnoresUnreadableImage(t *testing.T) {
	t.Parallel()

	doc := sampleDocument()
	doc.Image = []byte("GIF89a but truncated")
	res, err := New(WithCompression(false)).Render(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(res.PDF), "/Subtype /Image")
}

func TestRenderPaginatesLongBodies(t *testing.T) {
	t.Parallel()

	doc := sampleDocument()
	long := strings.Repeat("He scored a century in the final and was named player of the match. ", 400)
	doc.Sections = append(doc.Sections, dossier.Section{Heading: "Career", Body: long})
	res, err := New().Render(doc)
	require.NoError(t, err)
	assert.Greater(t, res.Pages, 2)
}

func TestHeadingIsNeverOrphaned(t *testing.T) {
	t.Parallel()

	l := A4()
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	p := &painter{pdf: pdf, layout: l, cur: Cursor{Page: 1, Y: l.Bottom() - headingAdvance}}

	p.section("Career Summary", "one line of body", bodySize, lineHeight)
	assert.Equal(t, 2, pdf.PageNo(), "heading moved to the next page with its body")
	assert.Equal(t, 2, p.cur.Page)
	assert.InDelta(t, l.MarginTop+headingAdvance+lineHeight+sectionGap, p.cur.Y, 0.001)
}

func TestEmptySectionsAreSkipped(t *testing.T) {
	t.Parallel()

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.AddPage()
	p := &painter{pdf: pdf, layout: A4(), cur: A4().Start()}
	p.section("Nothing", "   ", bodySize, lineHeight)
	p.stats("", []dossier.Field{{Label: "Runs", Value: ""}})
	assert.Equal(t, A4().Start(), p.cur)
}
