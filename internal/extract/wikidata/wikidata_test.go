package wikidata

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/player-dossier/internal/dossier"
)

type stubFetcher struct {
	body   string
	err    error
	params url.Values
}

func (s *stubFetcher) Fetch(_ context.Context, _ string, params url.Values) ([]byte, error) {
	s.params = params
	return []byte(s.body), s.err
}

func TestBirthDate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		body    string
		err     error
		want    string
		outcome dossier.Outcome
	}{
		{
			name:    "present",
			body:    `{"entities":{"Q1":{"claims":{"P569":[{"mainsnak":{"datavalue":{"value":{"time":"+1988-11-05T00:00:00Z","precision":11}}}}]}}}}`,
			want:    "1988-11-05",
			outcome: dossier.Present,
		},
		{
			name:    "no claim",
			body:    `{"entities":{"Q1":{"claims":{}}}}`,
			outcome: dossier.Absent,
		},
		{
			name:    "malformed time",
			body:    `{"entities":{"Q1":{"claims":{"P569":[{"mainsnak":{"datavalue":{"value":{"time":"1988"}}}}]}}}}`,
			outcome: dossier.Absent,
		},
		{
			name:    "string value",
			body:    `{"entities":{"Q1":{"claims":{"P569":[{"mainsnak":{"datavalue":{"value":"oops"}}}]}}}}`,
			outcome: dossier.Absent,
		},
		{
			name:    "somevalue snak",
			body:    `{"entities":{"Q1":{"claims":{"P569":[{"mainsnak":{"snaktype":"somevalue"}}]}}}}`,
			outcome: dossier.Absent,
		},
		{
			name:    "bad json",
			body:    `nope`,
			outcome: dossier.Failed,
		},
		{
			name:    "fetch error",
			err:     errors.New("timeout"),
			outcome: dossier.Failed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := &stubFetcher{body: tc.body, err: tc.err}
			got := New(f, "").BirthDate(context.Background(), "Q1")
			assert.Equal(t, tc.outcome, got.Outcome)
			assert.Equal(t, tc.want, got.Or(""))
			assert.Equal(t, "wbgetentities", f.params.Get("action"))
		})
	}
}

func TestBirthDateWithoutEntity(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{}
	got := New(f, "").BirthDate(context.Background(), "")
	require.Equal(t, dossier.Absent, got.Outcome)
	assert.Nil(t, f.params, "no request without an entity id")
}
