// Package detector decides when a listing page fetched over plain HTTP has
// to be rendered in a browser instead.
package detector

import (
	"bytes"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/player-dossier/internal/dossier"
	"github.com/JakeFAU/player-dossier/internal/extract/markup"
)

// DefaultMinVisibleText is the visible character count below which a page
// is treated as an unrendered shell.
const DefaultMinVisibleText = 512

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	MinVisibleText int
}

// NewHeuristic creates a new detector. Zero means DefaultMinVisibleText.
func NewHeuristic(minVisibleText int) *Heuristic {
	if minVisibleText <= 0 {
		minVisibleText = DefaultMinVisibleText
	}
	return &Heuristic{MinVisibleText: minVisibleText}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
}

// ShouldPromote reports whether resp looks like a page whose content is
// produced by scripts: an empty 200, or a 200 with little visible text that
// is dominated by scripts or carries a single-page-app mount point. Bot
// walls (403) are promoted too.
func (h *Heuristic) ShouldPromote(resp dossier.FetchResponse) bool {
	switch resp.StatusCode {
	case http.StatusForbidden:
		return true
	case http.StatusOK:
	default:
		return false
	}
	body := resp.Body
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	doc := markup.Document(string(body))
	if len(markup.Text(doc.Find("body"))) >= h.MinVisibleText {
		return false
	}
	if scriptShare(doc, len(body)) >= 25 {
		return true
	}
	lower := bytes.ToLower(body)
	for _, marker := range spaMarkers {
		if bytes.Contains(lower, bytes.ToLower(marker)) {
			return true
		}
	}
	return false
}

// scriptShare returns the percentage of total bytes taken by inline script
// bodies.
func scriptShare(doc *goquery.Document, total int) int {
	if total == 0 {
		return 0
	}
	scripted := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		scripted += len(s.Text())
	})
	return scripted * 100 / total
}
