// Package listing pulls subject names out of an auction or squad listing
// page. Pages change shape often, so extraction runs an ordered list of
// strategies and keeps the first one that finds anybody.
package listing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/player-dossier/internal/dossier"
	"github.com/JakeFAU/player-dossier/internal/extract/markup"
)

// Strategy extracts candidate subjects from raw listing HTML.
type Strategy struct {
	Name    string
	Extract func(raw string) []dossier.Subject
}

var (
	nameFragment = regexp.MustCompile(`"name"\s*:\s*"((?:[^"\\]|\\.)+)"`)
	teamFragment = regexp.MustCompile(`"team(?:Name)?"\s*:\s*"((?:[^"\\]|\\.)+)"`)
	personCell   = regexp.MustCompile(`^[A-Z][A-Za-z.' -]{2,}$`)
	playerPath   = regexp.MustCompile(`/cricketers/([a-z0-9-]+)-(\d+)`)
)

// DefaultStrategies tries embedded JSON first, then table rows.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "script", Extract: ScriptStrategy},
		{Name: "table", Extract: TableStrategy},
	}
}

// Parse runs DefaultStrategies over raw.
func Parse(raw string) []dossier.Subject {
	subjects, _ := ParseWith(raw, DefaultStrategies())
	return subjects
}

// ParseWith returns the deduplicated output of the first strategy that
// yields at least one subject, together with that strategy's name.
func ParseWith(raw string, strategies []Strategy) ([]dossier.Subject, string) {
	for _, s := range strategies {
		if found := Dedupe(s.Extract(raw)); len(found) > 0 {
			return found, s.Name
		}
	}
	return nil, ""
}

// ScriptStrategy reads "name":"..." fragments from embedded JSON. A name
// needs at least two words and must not start with "ipl" or "auction". The
// first "team"/"teamName" fragment between a name and the next one is taken
// as that subject's team; rejected names do not end a segment.
func ScriptStrategy(raw string) []dossier.Subject {
	type hit struct {
		name       string
		start, end int
	}
	var hits []hit
	for _, m := range nameFragment.FindAllStringSubmatchIndex(raw, -1) {
		name := strings.TrimSpace(unquote(raw[m[2]:m[3]]))
		if plausibleName(name) {
			hits = append(hits, hit{name: name, start: m[0], end: m[1]})
		}
	}
	out := make([]dossier.Subject, 0, len(hits))
	for i, h := range hits {
		next := len(raw)
		if i+1 < len(hits) {
			next = hits[i+1].start
		}
		var team string
		if t := teamFragment.FindStringSubmatch(raw[h.end:next]); t != nil {
			team = strings.TrimSpace(unquote(t[1]))
		}
		out = append(out, dossier.Subject{Name: h.name, Team: team})
	}
	return out
}

func plausibleName(name string) bool {
	if len(strings.Fields(name)) < 2 {
		return false
	}
	lower := strings.ToLower(name)
	return !strings.HasPrefix(lower, "ipl") && !strings.HasPrefix(lower, "auction")
}

// unquote decodes JSON string escapes, returning s unchanged when it is not
// a valid quoted body.
func unquote(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}

// TableStrategy takes, for each table row, the first cell that looks like a
// person's name of at most four words.
func TableStrategy(raw string) []dossier.Subject {
	var out []dossier.Subject
	markup.Document(raw).Find("tr").Each(func(_ int, row *goquery.Selection) {
		row.Find("td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
			cell := markup.Text(td)
			if personCell.MatchString(cell) && len(strings.Fields(cell)) <= 4 {
				out = append(out, dossier.Subject{Name: cell})
				return false
			}
			return true
		})
	})
	return out
}

// Dedupe drops repeated names, compared case-insensitively after trimming,
// keeping the first occurrence in order.
func Dedupe(subjects []dossier.Subject) []dossier.Subject {
	seen := make(map[string]struct{}, len(subjects))
	out := make([]dossier.Subject, 0, len(subjects))
	for _, s := range subjects {
		key := strings.ToLower(strings.TrimSpace(s.Name))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		s.Name = strings.TrimSpace(s.Name)
		out = append(out, s)
	}
	return out
}

// ParsePlayerURL turns a player page URL such as
// https://www.espncricinfo.com/cricketers/arshdeep-singh-1125976 into a
// subject named "Arshdeep Singh" with id 1125976.
func ParsePlayerURL(playerURL string) (dossier.Subject, error) {
	m := playerPath.FindStringSubmatch(playerURL)
	if m == nil {
		return dossier.Subject{}, fmt.Errorf("invalid player url %q", playerURL)
	}
	return dossier.Subject{
		Name:      titleCase(strings.ReplaceAll(m[1], "-", " ")),
		PlayerID:  m[2],
		PlayerURL: playerURL,
	}, nil
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
