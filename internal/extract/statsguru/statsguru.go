// Package statsguru reads career summary tables and the profile line from
// the statistics engine player pages.
package statsguru

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/player-dossier/internal/dossier"
	"github.com/JakeFAU/player-dossier/internal/extract/markup"
	"github.com/JakeFAU/player-dossier/internal/sanitize"
)

// DefaultBaseURL is the player page prefix; pages live at <base>/<id>.html.
const DefaultBaseURL = "https://stats.espncricinfo.com/ci/engine/player"

// Stat types accepted by Summary.
const (
	Batting  = "batting"
	Bowling  = "bowling"
	Allround = "allround"
)

const sourceName = "statsguru"

var (
	profileLine = regexp.MustCompile(`([A-Za-z .'-]+)\s*-\s*([^\n]+?)\s*-\s*Player profile`)
	bornText    = regexp.MustCompile(`Born\s+([A-Za-z0-9, ]+)`)
)

// PlayerInfo is the free text found at the top of a player page.
type PlayerInfo struct {
	Line string
	Born string
}

// Extractor fetches player pages through the shared client.
type Extractor struct {
	fetcher dossier.Fetcher
	baseURL string
}

// New builds an Extractor. An empty baseURL means DefaultBaseURL.
func New(fetcher dossier.Fetcher, baseURL string) *Extractor {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Extractor{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/")}
}

func (e *Extractor) pageURL(playerID string) string {
	return fmt.Sprintf("%s/%s.html", e.baseURL, url.PathEscape(playerID))
}

// Summary fetches the career summary for statType and returns it keyed by
// format.
func (e *Extractor) Summary(ctx context.Context, playerID, statType string) (dossier.StatsTable, error) {
	params := url.Values{
		"class":    {"11"},
		"template": {"results"},
		"type":     {statType},
	}
	body, err := e.fetcher.Fetch(ctx, e.pageURL(playerID), params)
	if err != nil {
		return nil, fmt.Errorf("%s summary for %s: %w", statType, playerID, err)
	}
	return ParseSummary(string(body))
}

// ParseSummary scans every engine table and returns the first one whose
// header row has a "Mat" column and that yields at least one row. Rows with
// a cell count different from the header are skipped, as are the "Span" and
// "Overall" rows.
func ParseSummary(raw string) (dossier.StatsTable, error) {
	doc := markup.Document(raw)
	var out dossier.StatsTable
	doc.Find("table.engineTable").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return true
		}
		headers := cells(rows.First().Find("th"))
		if !slices.Contains(headers, "Mat") {
			return true
		}
		parsed := dossier.StatsTable{}
		rows.Slice(1, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
			values := cells(row.Find("td"))
			if len(values) != len(headers) {
				return
			}
			format := values[0]
			switch strings.ToLower(format) {
			case "", "span", "overall":
				return
			}
			line := make(map[string]string, len(headers)-1)
			for i := 1; i < len(headers); i++ {
				line[headers[i]] = values[i]
			}
			parsed[format] = line
		})
		if len(parsed) == 0 {
			return true
		}
		out = parsed
		return false
	})
	if out == nil {
		return nil, &dossier.ExtractionMismatch{Source: sourceName, Reason: "no summary table with a Mat column"}
	}
	return out, nil
}

// ProfileLine fetches the all-round page and pulls the
// "<name> - <styles> - Player profile" line and the birth fragment. Either
// may be empty.
func (e *Extractor) ProfileLine(ctx context.Context, playerID string) (PlayerInfo, error) {
	params := url.Values{
		"class": {"11"},
		"type":  {Allround},
	}
	body, err := e.fetcher.Fetch(ctx, e.pageURL(playerID), params)
	if err != nil {
		return PlayerInfo{}, fmt.Errorf("profile line for %s: %w", playerID, err)
	}
	return ParsePlayerInfo(string(body)), nil
}

// ParsePlayerInfo matches the profile line and birth fragment in raw page
// HTML. Inline tags and entities inside either piece are stripped. The line
// is matched before stripping since it usually lives in the page title.
func ParsePlayerInfo(raw string) PlayerInfo {
	var info PlayerInfo
	if m := profileLine.FindString(raw); m != "" {
		info.Line = sanitize.CleanCell(sanitize.StripMarkup(m))
	}
	if m := bornText.FindStringSubmatch(sanitize.StripMarkup(raw)); m != nil {
		info.Born = sanitize.CleanCell(m[1])
	}
	return info
}

func cells(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, c *goquery.Selection) {
		out = append(out, sanitize.CleanCell(markup.Text(c)))
	})
	return out
}
