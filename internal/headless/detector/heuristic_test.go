package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/player-dossier/internal/dossier"
)

func TestHeuristic_ShouldPromote_EmptyBody(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(0)
	require.Equal(t, DefaultMinVisibleText, h.MinVisibleText)
	require.True(t, h.ShouldPromote(dossier.FetchResponse{StatusCode: 200, Body: []byte("  \n")}))
}

func TestHeuristic_ShouldPromote_SPAMarkers(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	resp := dossier.FetchResponse{
		StatusCode: 200,
		Body:       []byte(`<html><body><div id="__next"></div></body></html>`),
	}
	require.True(t, h.ShouldPromote(resp))
}

func TestHeuristic_ShouldPromote_ScriptDensity(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(1000)
	resp := dossier.FetchResponse{
		StatusCode: 200,
		Body:       []byte(`<html><script>var players = loadAuction(); render(players);</script><p>t</p></html>`),
	}
	require.True(t, h.ShouldPromote(resp))
}

func TestHeuristic_ShouldPromote_RenderedPageStays(t *testing.T) {
	t.Parallel()

	rows := strings.Repeat("<tr><td>Rishabh Pant</td><td>Lucknow Super Giants</td><td>27 crore</td></tr>", 20)
	resp := dossier.FetchResponse{
		StatusCode: 200,
		Body:       []byte(`<html><body><div id="__next"><table>` + rows + `</table></div><script>x()</script></body></html>`),
	}
	require.False(t, NewHeuristic(100).ShouldPromote(resp))
}

func TestHeuristic_ShouldPromote_ForbiddenAndErrors(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	require.True(t, h.ShouldPromote(dossier.FetchResponse{StatusCode: 403, Body: []byte("Access denied")}))
	require.False(t, h.ShouldPromote(dossier.FetchResponse{StatusCode: 404, Body: []byte("not found")}))
	require.False(t, h.ShouldPromote(dossier.FetchResponse{StatusCode: 200, Body: []byte("<p>short plain page</p>")}))
}
