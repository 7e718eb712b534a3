// Package dossier defines core types shared across the profile pipeline.
package dossier

import (
	"net/http"
	"time"
)

// Subject is one person the operator asked for, plus any hints gathered
// alongside the name (listing team label, stats-site identifiers).
type Subject struct {
	Name      string `json:"name" yaml:"name"`
	Team      string `json:"team,omitempty" yaml:"team"`
	PlayerID  string `json:"player_id,omitempty" yaml:"player_id"`
	PlayerURL string `json:"player_url,omitempty" yaml:"player_url"`
}

// Field is a single label/value pair in an ordered listing.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Section is a titled block of body text on the rendered document.
type Section struct {
	Heading string
	Body    string
}

// StatsTable maps a format name (e.g. "T20Is") to its label/value row.
type StatsTable map[string]map[string]string

// Row returns the stats row for format, or nil.
func (t StatsTable) Row(format string) map[string]string {
	if t == nil {
		return nil
	}
	return t[format]
}

// Basic holds the derived scalar fields shown in the summary block.
type Basic struct {
	Age     string `json:"age"`
	Country string `json:"country"`
	Role    string `json:"role"`
	Team    string `json:"ipl_team"`
	Matches string `json:"matches"`
	Runs    string `json:"runs"`
	Wickets string `json:"wickets"`
}

// Fields returns the basics as ordered summary lines.
func (b Basic) Fields() []Field {
	return []Field{
		{Label: "Age", Value: b.Age},
		{Label: "Country", Value: b.Country},
		{Label: "Role", Value: b.Role},
		{Label: "IPL Current Team", Value: b.Team},
		{Label: "Matches", Value: b.Matches},
		{Label: "Runs", Value: b.Runs},
		{Label: "Wickets", Value: b.Wickets},
	}
}

// Profile is the merged record for one subject.
type Profile struct {
	Name        string
	URL         string
	Extract     string
	Infobox     Infobox
	WikidataID  string
	BirthDate   string
	ImageURL    string
	ImagePath   string
	Batting     StatsTable
	Bowling     StatsTable
	Summary     []Field
	Basic       Basic
	PlayerID    string
	PlayerURL   string
	RetrievedAt time.Time
	// Warnings records optional sources that failed and were skipped.
	Warnings []error
}

// SummaryMap flattens the ordered stats summary into a map.
func (p Profile) SummaryMap() map[string]string {
	out := make(map[string]string, len(p.Summary))
	for _, f := range p.Summary {
		out[f.Label] = f.Value
	}
	return out
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a transport.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}
