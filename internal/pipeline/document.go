package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/JakeFAU/player-dossier/internal/dossier"
	"github.com/JakeFAU/player-dossier/internal/render"
	"github.com/JakeFAU/player-dossier/internal/sanitize"
)

const (
	titlePrefix         = "IPL Player Profile: "
	careerHeading       = "Career Summary"
	infoboxHeading      = "Infobox Details (Wikipedia)"
	statsHeading        = "ESPN Cricinfo Stats Summary"
	retrievedLayout     = "2006-01-02 15:04:05"
	licenseNote         = "Text from Wikipedia is available under CC BY-SA."
	provenanceSeparator = " | "
)

// InfoboxPrefixes selects the infobox rows worth repeating on a profile.
var InfoboxPrefixes = []string{
	"Born", "Role", "Batting", "Bowling", "National side",
	"Test", "ODI", "T20I", "Career statistics",
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SafeName maps a display name to a file stem: runs of characters outside
// [A-Za-z0-9_-] become one underscore, and edge underscores are dropped.
func SafeName(name string) string {
	return strings.Trim(unsafeName.ReplaceAllString(name, "_"), "_")
}

// BuildDocument assembles the printable document for a resolved profile.
// Every value passes through the sanitizer; empty basics print as N/A.
func BuildDocument(p dossier.Profile, image []byte) render.Document {
	fields := p.Basic.Fields()
	for i := range fields {
		fields[i].Value = orNA(sanitize.Text(fields[i].Value))
	}

	sections := []dossier.Section{{Heading: careerHeading, Body: sanitize.Summary(p.Extract)}}
	if rows := p.Infobox.Filter(InfoboxPrefixes...); len(rows) > 0 {
		parts := make([]string, 0, len(rows))
		for _, row := range rows {
			if v := sanitize.Text(row.Value); v != "" {
				parts = append(parts, sanitize.Text(row.Label)+": "+v)
			}
		}
		if len(parts) > 0 {
			sections = append(sections, dossier.Section{
				Heading: infoboxHeading,
				Body:    strings.Join(parts, provenanceSeparator),
			})
		}
	}

	stats := make([]dossier.Field, 0, len(p.Summary))
	for _, f := range p.Summary {
		stats = append(stats, dossier.Field{Label: sanitize.Text(f.Label), Value: sanitize.Text(f.Value)})
	}

	return render.Document{
		Title:        sanitize.Text(titlePrefix + p.Name),
		Fields:       fields,
		Image:        image,
		Sections:     sections,
		StatsHeading: statsHeading,
		Stats:        stats,
		Provenance:   Provenance(p),
		Created:      p.RetrievedAt,
	}
}

// Provenance describes where a profile's data came from and when.
func Provenance(p dossier.Profile) string {
	parts := []string{
		"Wikipedia: " + orNA(p.URL),
		"Wikidata: " + orNA(p.WikidataID),
	}
	if p.PlayerURL != "" {
		parts = append(parts, "ESPN Cricinfo: "+p.PlayerURL)
	}
	parts = append(parts, fmt.Sprintf("Retrieved: %s UTC", p.RetrievedAt.UTC().Format(retrievedLayout)))
	return sanitize.Text(strings.Join(parts, provenanceSeparator) + ". " + licenseNote)
}

func orNA(s string) string {
	if s == "" {
		return sanitize.NotAvailable
	}
	return s
}

// retrievedAt is the timestamp a profile is stamped with when the resolver
// left it unset.
func retrievedAt(p dossier.Profile, now time.Time) time.Time {
	if p.RetrievedAt.IsZero() {
		return now
	}
	return p.RetrievedAt
}
