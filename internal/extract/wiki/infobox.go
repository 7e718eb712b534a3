package wiki

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/player-dossier/internal/dossier"
	"github.com/JakeFAU/player-dossier/internal/extract/markup"
	"github.com/JakeFAU/player-dossier/internal/sanitize"
)

// ParseInfobox reads the first table whose class mentions "infobox". Each
// row with both a header and a data cell becomes one field; rows missing
// either are skipped. A repeated key keeps its first position and takes the
// later value.
func ParseInfobox(pageHTML string) dossier.Infobox {
	var box dossier.Infobox
	doc := markup.Document(pageHTML)
	table := doc.Find("table").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return strings.Contains(class, "infobox")
	}).First()
	if table.Length() == 0 {
		return box
	}
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		th := row.Find("th").First()
		td := row.Find("td").First()
		if th.Length() == 0 || td.Length() == 0 {
			return
		}
		box.Set(sanitize.CleanCell(markup.Text(th)), sanitize.CleanCell(markup.Text(td)))
	})
	return box
}
