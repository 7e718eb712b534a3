package statsguru

import (
	"context"
	"errors"
	"net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/player-dossier/internal/dossier"
)

type stubFetcher struct {
	body    []byte
	err     error
	gotURL  string
	gotArgs url.Values
}

func (s *stubFetcher) Fetch(_ context.Context, rawURL string, params url.Values) ([]byte, error) {
	s.gotURL = rawURL
	s.gotArgs = params
	return s.body, s.err
}

func fixture(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/arshdeep_batting.html")
	require.NoError(t, err)
	return raw
}

func TestParseSummary(t *testing.T) {
	t.Parallel()

	table, err := ParseSummary(string(fixture(t)))
	require.NoError(t, err)

	require.Len(t, table, 2, "span, overall and malformed rows are skipped")
	assert.Equal(t, "63", table.Row("T20Is")["Mat"])
	assert.Equal(t, "1,012", table.Row("T20Is")["Runs"])
	assert.Equal(t, "9", table.Row("ODIs")["Mat"])
	assert.NotContains(t, table.Row("ODIs"), "Grouping")
	assert.Nil(t, table.Row("Overall"))
}

func TestParseSummaryWithoutMatColumn(t *testing.T) {
	t.Parallel()

	_, err := ParseSummary(`<table class="engineTable"><tr><th>Name</th></tr><tr><td>x</td></tr></table>`)
	var mismatch *dossier.ExtractionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "statsguru", mismatch.Source)
}

func TestSummaryRequestsResultsTemplate(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{body: fixture(t)}
	table, err := New(f, "https://stats.example.com/engine/player/").Summary(context.Background(), "1125976", Bowling)
	require.NoError(t, err)
	assert.NotEmpty(t, table)
	assert.Equal(t, "https://stats.example.com/engine/player/1125976.html", f.gotURL)
	assert.Equal(t, "11", f.gotArgs.Get("class"))
	assert.Equal(t, "results", f.gotArgs.Get("template"))
	assert.Equal(t, "bowling", f.gotArgs.Get("type"))
}

func TestSummaryPropagatesFetchErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := New(&stubFetcher{err: boom}, "").Summary(context.Background(), "1", Batting)
	require.ErrorIs(t, err, boom)
}

func TestProfileLine(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{body: fixture(t)}
	info, err := New(f, "").ProfileLine(context.Background(), "1125976")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL+"/1125976.html", f.gotURL)
	assert.Equal(t, "allround", f.gotArgs.Get("type"))
	assert.Empty(t, f.gotArgs.Get("template"))
	assert.Equal(t, "Arshdeep Singh - left-hand bat; left-arm medium-fast - Player profile", info.Line)
	assert.Equal(t, "5 February 1999, Guna", info.Born)
}

func TestParsePlayerInfoStripsInlineMarkup(t *testing.T) {
	t.Parallel()

	raw := "<html><body>\n" +
		"<h1>Kane Williamson - right-hand bat &amp; <i>right-arm offbreak</i> - Player profile</h1>\n" +
		"<p><b>Born</b> 8 August 1990, <a href=\"/t\">Tauranga</a></p>\n" +
		"</body></html>"
	info := ParsePlayerInfo(raw)
	assert.Equal(t, "Kane Williamson - right-hand bat & right-arm offbreak - Player profile", info.Line)
	assert.Equal(t, "8 August 1990, Tauranga", info.Born)
}

func TestParsePlayerInfoMissingPieces(t *testing.T) {
	t.Parallel()

	assert.Equal(t, PlayerInfo{}, ParsePlayerInfo("<html><body>nothing here</body></html>"))
}
