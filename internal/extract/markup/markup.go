// Package markup holds HTML text helpers shared by the page extractors.
package markup

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Text returns the visible text of sel: every text node trimmed, empty
// nodes dropped, and the rest joined by single spaces. Script, style and
// template contents are skipped.
func Text(sel *goquery.Selection) string {
	var parts []string
	for _, n := range sel.Nodes {
		collect(n, &parts)
	}
	return strings.Join(parts, " ")
}

func collect(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Template, atom.Noscript:
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c, parts)
	}
}

// Document parses raw HTML. Parse failures yield an empty document; the
// HTML5 parser only fails on reader errors.
func Document(raw string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return goquery.NewDocumentFromNode(&html.Node{Type: html.DocumentNode})
	}
	return doc
}
