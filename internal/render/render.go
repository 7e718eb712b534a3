// Package render lays a profile document out on fixed-size pages and
// produces a validated PDF.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/JakeFAU/player-dossier/internal/dossier"
	"github.com/JakeFAU/player-dossier/internal/metrics"
)

const (
	fontFamily     = "Helvetica"
	titleSize      = 14
	headingSize    = 11
	bodySize       = 10
	smallSize      = 9
	titleAdvance   = 20
	headingAdvance = 16
	lineHeight     = 14
	smallLine      = 12
	sectionGap     = 8
	imageName      = "portrait"
)

// DefaultStatsHeading is used when a Document has stats but no heading.
const DefaultStatsHeading = "Statistics"

var (
	imageBoxW   = 4.5 * PointsPerCM
	imageBoxH   = 6 * PointsPerCM
	imageIndent = 5 * PointsPerCM
	imageBlockH = 7 * PointsPerCM
)

// Document is everything drawn on a profile. All text must already be
// sanitized to printable ASCII.
type Document struct {
	Title string
	// Fields are drawn as "Label: Value" next to the image.
	Fields []dossier.Field
	// Image is optional encoded image data. Anything that is not a
	// decodable image is ignored.
	Image    []byte
	Sections []dossier.Section
	// Stats entries with empty values are skipped; the section is omitted
	// when none remain.
	StatsHeading string
	Stats        []dossier.Field
	// Provenance is drawn under a "Source" heading in a smaller font.
	Provenance string
	Created    time.Time
}

// Result is a rendered, validated PDF.
type Result struct {
	PDF   []byte
	Pages int
}

// Renderer draws Documents.
type Renderer struct {
	layout   Layout
	compress bool
	logger   *zap.Logger
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithLayout overrides the page geometry.
func WithLayout(l Layout) Option {
	return func(r *Renderer) {
		r.layout = l
	}
}

// WithCompression toggles content stream compression.
func WithCompression(on bool) Option {
	return func(r *Renderer) {
		r.compress = on
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New builds a Renderer for A4 pages.
func New(opts ...Option) *Renderer {
	r := &Renderer{layout: A4(), compress: true, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render draws doc and validates the output. Nothing is returned unless the
// whole document rendered and parsed back cleanly.
func (r *Renderer) Render(doc Document) (Result, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(r.layout.MarginX, r.layout.MarginTop, r.layout.MarginX)
	pdf.SetCompression(r.compress)
	pdf.SetTitle(doc.Title, false)
	pdf.SetCreator("player-dossier", false)
	if !doc.Created.IsZero() {
		pdf.SetCreationDate(doc.Created)
		pdf.SetModificationDate(doc.Created)
	}
	pdf.AddPage()

	p := &painter{pdf: pdf, layout: r.layout, cur: r.layout.Start(), logger: r.logger}
	p.title(doc.Title)
	p.fields(doc.Fields, doc.Image)
	for _, s := range doc.Sections {
		p.section(s.Heading, s.Body, bodySize, lineHeight)
	}
	p.stats(doc.StatsHeading, doc.Stats)
	if doc.Provenance != "" {
		p.section("Source", doc.Provenance, smallSize, smallLine)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Result{}, fmt.Errorf("write pdf: %w", err)
	}
	pages, err := Validate(buf.Bytes())
	if err != nil {
		return Result{}, err
	}
	metrics.ObserveRenderedPages(pages)
	return Result{PDF: buf.Bytes(), Pages: pages}, nil
}

var disablePDFConfig sync.Once

// Validate parses a PDF and returns its page count.
func Validate(data []byte) (int, error) {
	// Keep pdfcpu from creating a config directory under the user's home.
	disablePDFConfig.Do(func() { model.ConfigPath = "disable" })
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("validate pdf: %w", err)
	}
	return ctx.PageCount, nil
}

type painter struct {
	pdf    *fpdf.Fpdf
	layout Layout
	cur    Cursor
	logger *zap.Logger
	style  string
	size   float64
}

func (p *painter) setFont(style string, size float64) {
	p.style, p.size = style, size
	p.pdf.SetFont(fontFamily, style, size)
}

// reserve moves to a new page when need does not fit.
func (p *painter) reserve(need float64) {
	next, broke := p.layout.Advance(p.cur, need)
	if broke {
		p.pdf.AddPage()
		p.pdf.SetFont(fontFamily, p.style, p.size)
	}
	p.cur = next
}

func (p *painter) measure(s string) float64 {
	return p.pdf.GetStringWidth(s)
}

func (p *painter) title(text string) {
	p.setFont("B", titleSize)
	p.pdf.Text(p.layout.MarginX, p.cur.Y, text)
	p.cur.Y += titleAdvance
}

func (p *painter) fields(fields []dossier.Field, img []byte) {
	textX := p.layout.MarginX
	block := float64(len(fields))*lineHeight + sectionGap
	placed := p.image(img)
	if placed {
		textX += imageIndent
		block = max(block, imageBlockH)
	}
	p.setFont("", bodySize)
	y := p.cur.Y
	for _, f := range fields {
		p.pdf.Text(textX, y, f.Label+": "+f.Value)
		y += lineHeight
	}
	p.cur.Y += block
}

// image draws img in the top-left box and reports whether it did.
func (p *painter) image(img []byte) bool {
	if len(img) == 0 {
		return false
	}
	data, size, err := NormalizeImage(img)
	if err != nil {
		p.logger.Warn("skipping unreadable image", zap.Error(err))
		return false
	}
	opts := fpdf.ImageOptions{ImageType: "JPG"}
	p.pdf.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(data))
	if p.pdf.Err() {
		p.logger.Warn("skipping image rejected by pdf writer", zap.Error(p.pdf.Error()))
		p.pdf.ClearError()
		return false
	}
	w, h := FitBox(float64(size.X), float64(size.Y), imageBoxW, imageBoxH)
	top := p.cur.Y - bodySize
	p.pdf.ImageOptions(imageName, p.layout.MarginX, top, w, h, false, opts, 0, "")
	return true
}

func (p *painter) heading(text string, bodyLine float64) {
	p.setFont("B", headingSize)
	// A heading always keeps at least one body line under it.
	p.reserve(headingAdvance + bodyLine)
	p.pdf.Text(p.layout.MarginX, p.cur.Y, text)
	p.cur.Y += headingAdvance
}

func (p *painter) lines(text string, size, step float64) {
	p.setFont("", size)
	for line := range Wrap(text, p.layout.ContentWidth(), p.measure) {
		p.reserve(step)
		p.pdf.Text(p.layout.MarginX, p.cur.Y, line)
		p.cur.Y += step
	}
}

func (p *painter) section(heading, body string, size, step float64) {
	if strings.TrimSpace(body) == "" {
		return
	}
	p.heading(heading, step)
	p.lines(body, size, step)
	p.cur.Y += sectionGap
}

func (p *painter) stats(heading string, stats []dossier.Field) {
	var kept []dossier.Field
	for _, f := range stats {
		if f.Value != "" {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return
	}
	if heading == "" {
		heading = DefaultStatsHeading
	}
	p.heading(heading, lineHeight)
	for _, f := range kept {
		p.lines(f.Label+": "+f.Value, bodySize, lineHeight)
	}
	p.cur.Y += sectionGap
}
