// Package wiki extracts the encyclopedia page for a subject: summary text,
// canonical URL, linked-data id, lead image and infobox.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/player-dossier/internal/dossier"
)

// DefaultEndpoint is the MediaWiki action API.
const DefaultEndpoint = "https://en.wikipedia.org/w/api.php"

const sourceName = "wikipedia"

// Page is what the encyclopedia knows about one title.
type Page struct {
	Title      string
	URL        string
	Extract    string
	WikidataID string
	ImageURL   string
	Infobox    dossier.Infobox
}

// Extractor queries the MediaWiki API through the shared client.
type Extractor struct {
	fetcher  dossier.Fetcher
	endpoint string
	logger   *zap.Logger
}

// New builds an Extractor. An empty endpoint means DefaultEndpoint.
func New(fetcher dossier.Fetcher, endpoint string, logger *zap.Logger) *Extractor {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{fetcher: fetcher, endpoint: endpoint, logger: logger}
}

type queryResponse struct {
	Query struct {
		Pages map[string]queryPage `json:"pages"`
	} `json:"query"`
}

type queryPage struct {
	Title     string          `json:"title"`
	Extract   string          `json:"extract"`
	FullURL   string          `json:"fullurl"`
	Missing   json.RawMessage `json:"missing"`
	Invalid   json.RawMessage `json:"invalid"`
	PageProps struct {
		WikibaseItem string `json:"wikibase_item"`
	} `json:"pageprops"`
	Thumbnail struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
}

type parseResponse struct {
	Parse struct {
		Title string `json:"title"`
		Text  struct {
			HTML string `json:"*"`
		} `json:"text"`
	} `json:"parse"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// Extract fetches the page for title. A missing page yields
// *dossier.NotFoundError; a page without an infobox is not an error.
func (e *Extractor) Extract(ctx context.Context, title string) (Page, error) {
	params := url.Values{
		"action":      {"query"},
		"format":      {"json"},
		"prop":        {"extracts|info|pageprops|pageimages"},
		"inprop":      {"url"},
		"explaintext": {"1"},
		"redirects":   {"1"},
		"pithumbsize": {"600"},
		"titles":      {title},
	}
	var qr queryResponse
	if err := dossier.FetchJSON(ctx, e.fetcher, sourceName, e.endpoint, params, &qr); err != nil {
		return Page{}, fmt.Errorf("query %q: %w", title, err)
	}
	qp, ok := firstPage(qr.Query.Pages)
	if !ok || len(qp.Missing) > 0 || len(qp.Invalid) > 0 {
		return Page{}, &dossier.NotFoundError{Source: sourceName, Title: title}
	}

	page := Page{
		Title:      qp.Title,
		URL:        qp.FullURL,
		Extract:    qp.Extract,
		WikidataID: qp.PageProps.WikibaseItem,
		ImageURL:   qp.Thumbnail.Source,
	}
	if page.Title == "" {
		page.Title = title
	}

	infobox, err := e.infobox(ctx, page.Title)
	if err != nil {
		return Page{}, err
	}
	page.Infobox = infobox
	e.logger.Debug("wiki page extracted",
		zap.String("title", page.Title),
		zap.Int("infobox_fields", infobox.Len()),
		zap.Bool("has_image", page.ImageURL != ""),
	)
	return page, nil
}

func (e *Extractor) infobox(ctx context.Context, title string) (dossier.Infobox, error) {
	params := url.Values{
		"action": {"parse"},
		"format": {"json"},
		"prop":   {"text"},
		"page":   {title},
	}
	var pr parseResponse
	if err := dossier.FetchJSON(ctx, e.fetcher, sourceName, e.endpoint, params, &pr); err != nil {
		return dossier.Infobox{}, fmt.Errorf("parse %q: %w", title, err)
	}
	if pr.Error != nil {
		if pr.Error.Code == "missingtitle" {
			return dossier.Infobox{}, &dossier.NotFoundError{Source: sourceName, Title: title}
		}
		return dossier.Infobox{}, &dossier.ExtractionMismatch{Source: sourceName, Reason: pr.Error.Info}
	}
	return ParseInfobox(pr.Parse.Text.HTML), nil
}

// firstPage returns the single page of a one-title query. The API keys pages
// by id, with "-1" for missing titles.
func firstPage(pages map[string]queryPage) (queryPage, bool) {
	for _, p := range pages {
		return p, true
	}
	return queryPage{}, false
}
