package dossier

import "time"

// Record is the flattened metadata persisted per profile. It carries no
// free text, only paths, identifiers and derived scalars.
type Record struct {
	Name        string            `json:"name"`
	PDFPath     string            `json:"pdf_path"`
	ImagePath   string            `json:"image_path"`
	ImageSHA256 string            `json:"image_sha256,omitempty"`
	WikiURL     string            `json:"wiki_url,omitempty"`
	WikidataID  string            `json:"wikidata_id,omitempty"`
	PlayerID    string            `json:"espn_player_id"`
	PlayerURL   string            `json:"espn_player_url"`
	Stats       map[string]string `json:"espn_stats"`
	Basic
	RunID     string    `json:"run_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRecord flattens a profile into its persisted form.
func NewRecord(p Profile, pdfPath string) Record {
	stats := p.SummaryMap()
	return Record{
		Name:       p.Name,
		PDFPath:    pdfPath,
		ImagePath:  p.ImagePath,
		WikiURL:    p.URL,
		WikidataID: p.WikidataID,
		PlayerID:   p.PlayerID,
		PlayerURL:  p.PlayerURL,
		Stats:      stats,
		Basic:      p.Basic,
		UpdatedAt:  p.RetrievedAt,
	}
}
