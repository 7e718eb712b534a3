// Package wikidata reads structured claims from the linked-data entity of a
// page. Only the date of birth is used.
package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"

	"github.com/JakeFAU/player-dossier/internal/dossier"
)

// DefaultEndpoint is the Wikidata action API.
const DefaultEndpoint = "https://www.wikidata.org/w/api.php"

// BirthDateProperty is the "date of birth" property id.
const BirthDateProperty = "P569"

const sourceName = "wikidata"

var isoDate = regexp.MustCompile(`^\+(\d{4}-\d{2}-\d{2})T`)

// Extractor fetches entity claims through the shared client.
type Extractor struct {
	fetcher  dossier.Fetcher
	endpoint string
}

// New builds an Extractor. An empty endpoint means DefaultEndpoint.
func New(fetcher dossier.Fetcher, endpoint string) *Extractor {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Extractor{fetcher: fetcher, endpoint: endpoint}
}

type entitiesResponse struct {
	Entities map[string]struct {
		Claims map[string][]claim `json:"claims"`
	} `json:"entities"`
}

type claim struct {
	MainSnak struct {
		DataValue struct {
			Value json.RawMessage `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

// BirthDate returns the entity's date of birth as YYYY-MM-DD. A missing or
// malformed claim is Absent; a fetch or decode failure is Failed. Neither is
// fatal to the caller.
func (e *Extractor) BirthDate(ctx context.Context, entityID string) dossier.Result[string] {
	if entityID == "" {
		return dossier.Missing[string]()
	}
	params := url.Values{
		"action": {"wbgetentities"},
		"ids":    {entityID},
		"props":  {"claims"},
		"format": {"json"},
	}
	var resp entitiesResponse
	if err := dossier.FetchJSON(ctx, e.fetcher, sourceName, e.endpoint, params, &resp); err != nil {
		return dossier.Failure[string](fmt.Errorf("wikidata %s: %w", entityID, err))
	}
	claims := resp.Entities[entityID].Claims[BirthDateProperty]
	if len(claims) == 0 {
		return dossier.Missing[string]()
	}
	if date := parseTime(claims[0].MainSnak.DataValue.Value); date != "" {
		return dossier.Found(date)
	}
	return dossier.Missing[string]()
}

// parseTime extracts the date part of a time datavalue such as
// {"time":"+1988-11-05T00:00:00Z", ...}.
func parseTime(raw json.RawMessage) string {
	var v struct {
		Time string `json:"time"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return ""
	}
	m := isoDate.FindStringSubmatch(v.Time)
	if m == nil {
		return ""
	}
	return m[1]
}
