package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/player-dossier/internal/dossier"
	"github.com/JakeFAU/player-dossier/internal/hash/sha256"
	"github.com/JakeFAU/player-dossier/internal/metastore"
	memorypublisher "github.com/JakeFAU/player-dossier/internal/publisher/memory"
	"github.com/JakeFAU/player-dossier/internal/render"
	"github.com/JakeFAU/player-dossier/internal/storage/local"
	memorystorage "github.com/JakeFAU/player-dossier/internal/storage/memory"
)

var built = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return built }

type sequenceIDs struct{}

func (sequenceIDs) NewID() (string, error) { return "0195-run", nil }

type fakeResolver struct {
	profiles map[string]dossier.Profile
}

func (f *fakeResolver) Resolve(_ context.Context, subject dossier.Subject) (dossier.Profile, error) {
	p, ok := f.profiles[subject.Name]
	if !ok {
		return dossier.Profile{}, &dossier.ResolutionError{
			Subject: subject.Name,
			Cause:   &dossier.NotFoundError{Source: "wikipedia", Title: subject.Name},
		}
	}
	return p, nil
}

type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string, _ url.Values) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	body, ok := f.bodies[rawURL]
	if !ok {
		return nil, errors.New("unexpected status 404 Not Found")
	}
	return body, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 30, 40))
	for y := range 40 {
		for x := range 30 {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func kohli() dossier.Profile {
	box := dossier.Infobox{}
	box.Set("Born", "5 November 1988 Delhi, India")
	box.Set("Role", "Top-order batter")
	box.Set("Nickname", "Chiku")
	return dossier.Profile{
		Name:       "Virat Kohli",
		URL:        "https://en.wikipedia.org/wiki/Virat_Kohli",
		Extract:    "Virat Kohli is an Indian international cricketer. He plays for Royal Challengers Bengaluru. He is a right-handed batter.",
		Infobox:    box,
		WikidataID: "Q213854",
		ImageURL:   "https://upload.wikimedia.org/kohli.png",
		Basic:      dossier.Basic{Age: "37", Country: "India", Role: "Top-order batter", Team: "Royal Challengers Bengaluru"},
		Summary: []dossier.Field{
			{Label: "T20I matches", Value: "125"},
			{Label: "T20I runs", Value: "4188"},
		},
		PlayerID:    "253802",
		RetrievedAt: built,
	}
}

type harness struct {
	dir       string
	runner    *Runner
	fetcher   *fakeFetcher
	mirror    *memorystorage.BlobStore
	publisher *memorypublisher.Publisher
	meta      *metastore.FileStore
	out       *bytes.Buffer
}

func newHarness(t *testing.T, resolver Resolver, bodies map[string][]byte) *harness {
	t.Helper()
	dir := t.TempDir()
	artifacts, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	h := &harness{
		dir:       dir,
		fetcher:   &fakeFetcher{bodies: bodies},
		mirror:    memorystorage.NewBlobStore(),
		publisher: memorypublisher.New(),
		meta:      metastore.NewFileStore(filepath.Join(dir, metastore.DefaultFileName), nil),
		out:       &bytes.Buffer{},
	}
	h.runner = New(
		resolver,
		render.New(),
		h.fetcher,
		artifacts,
		h.mirror,
		h.meta,
		h.publisher,
		sha256.New(),
		sequenceIDs{},
		fixedClock{},
		h.out,
		Config{Topic: "profiles", ImageCDN: DefaultImageCDN},
		nil,
	)
	return h
}

func TestRunBuildsDocumentsAndMetadata(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{profiles: map[string]dossier.Profile{"Virat Kohli": kohli()}}
	h := newHarness(t, resolver, map[string][]byte{"https://upload.wikimedia.org/kohli.png": pngBytes(t)})

	summary, err := h.runner.Run(context.Background(), []dossier.Subject{
		{Name: "Virat Kohli"},
		{Name: "Nobody Atall"},
	})
	require.NoError(t, err)
	assert.Equal(t, "0195-run", summary.RunID)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	lines := strings.Split(strings.TrimSpace(h.out.String()), "\n")
	require.Len(t, lines, 2)
	pdfPath := filepath.Join(h.dir, "Virat_Kohli.pdf")
	assert.Equal(t, "[1/2] OK Virat Kohli -> "+pdfPath, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "[2/2] ERROR Nobody Atall: "), lines[1])

	pdf, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	imagePath := filepath.Join(h.dir, "images", "Virat_Kohli.jpg")
	jpeg, err := os.ReadFile(imagePath)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, jpeg[:2])

	snap, err := h.meta.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap, 1)
	rec := snap["Virat Kohli"]
	assert.Equal(t, pdfPath, rec.PDFPath)
	assert.Equal(t, imagePath, rec.ImagePath)
	assert.Len(t, rec.ImageSHA256, 64)
	assert.Equal(t, "0195-run", rec.RunID)
	assert.Equal(t, "125", rec.Stats["T20I matches"])
	assert.Equal(t, "253802", rec.PlayerID)

	assert.Equal(t, []string{"Virat_Kohli.pdf", "images/Virat_Kohli.jpg"}, h.mirror.Paths())

	msgs := h.publisher.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "profiles", msgs[0].Topic)
	event, ok := msgs[0].Payload.(ProfileBuilt)
	require.True(t, ok)
	assert.Equal(t, "Virat Kohli", event.Name)
	assert.Equal(t, "memory://Virat_Kohli.pdf", event.MirrorURI)
	assert.GreaterOrEqual(t, event.Pages, 1)
}

func TestRunFallsBackToImageCDN(t *testing.T) {
	t.Parallel()

	p := kohli()
	p.ImageURL = ""
	resolver := &fakeResolver{profiles: map[string]dossier.Profile{"Virat Kohli": p}}
	cdn := "https://img1.hscicdn.com/image/upload/f_auto,q_auto/lsci/db/PICTURES/CMS/virat-kohli.jpg"
	h := newHarness(t, resolver, map[string][]byte{cdn: pngBytes(t)})

	summary, err := h.runner.Run(context.Background(), []dossier.Subject{{Name: "Virat Kohli"}})
	require.NoError(t, err)
	require.Len(t, summary.Records, 1)
	assert.NotEmpty(t, summary.Records[0].ImagePath)
	assert.Equal(t, []string{cdn}, h.fetcher.calls)
}

func TestRunWithoutPortraitStillBuilds(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{profiles: map[string]dossier.Profile{"Virat Kohli": kohli()}}
	h := newHarness(t, resolver, map[string][]byte{
		"https://upload.wikimedia.org/kohli.png": []byte("not an image"),
	})

	summary, err := h.runner.Run(context.Background(), []dossier.Subject{{Name: "Virat Kohli"}})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)
	assert.Empty(t, summary.Records[0].ImagePath)
	assert.Empty(t, summary.Records[0].ImageSHA256)
	assert.Len(t, h.fetcher.calls, 2, "page image then CDN")
}

func TestRunReusesPriorPortrait(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{profiles: map[string]dossier.Profile{"Virat Kohli": kohli()}}
	h := newHarness(t, resolver, nil)

	saved := filepath.Join(h.dir, "images", "Virat_Kohli.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(saved), 0o750))
	jpeg, _, err := render.NormalizeImage(pngBytes(t))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(saved, jpeg, 0o600))
	require.NoError(t, h.meta.Upsert(context.Background(), []dossier.Record{{Name: "Virat Kohli", ImagePath: saved}}))

	summary, err := h.runner.Run(context.Background(), []dossier.Subject{{Name: "Virat Kohli"}})
	require.NoError(t, err)
	require.Len(t, summary.Records, 1)
	assert.Equal(t, saved, summary.Records[0].ImagePath)
	assert.Empty(t, h.fetcher.calls)
}

func TestRunZeroSuccessesKeepsMetadata(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeResolver{}, nil)
	require.NoError(t, h.meta.Upsert(context.Background(), []dossier.Record{{Name: "MS Dhoni", PDFPath: "old.pdf"}}))
	before, err := os.ReadFile(h.meta.Path())
	require.NoError(t, err)

	summary, err := h.runner.Run(context.Background(), []dossier.Subject{{Name: "Nobody Atall"}})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Succeeded)
	assert.Contains(t, h.out.String(), "keeping existing metadata")

	after, err := os.ReadFile(h.meta.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, h.publisher.Messages())
}

func TestRunReportsWarnings(t *testing.T) {
	t.Parallel()

	p := kohli()
	p.Warnings = []error{errors.New("batting summary: fetch failed")}
	resolver := &fakeResolver{profiles: map[string]dossier.Profile{"Virat Kohli": p}}
	h := newHarness(t, resolver, nil)

	_, err := h.runner.Run(context.Background(), []dossier.Subject{{Name: "Virat Kohli"}})
	require.NoError(t, err)
	assert.Contains(t, h.out.String(), "[1/1] WARN Virat Kohli: batting summary: fetch failed\n")

	msgs := h.publisher.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"batting summary: fetch failed"}, msgs[0].Payload.(ProfileBuilt).Warnings)
}

func TestRunPublishFailureDoesNotFailSubject(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{profiles: map[string]dossier.Profile{"Virat Kohli": kohli()}}
	h := newHarness(t, resolver, nil)
	h.publisher.FailWith(errors.New("broker down"))

	summary, err := h.runner.Run(context.Background(), []dossier.Subject{{Name: "Virat Kohli"}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestRunStopsWhenCanceled(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{profiles: map[string]dossier.Profile{"Virat Kohli": kohli()}}
	h := newHarness(t, resolver, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.runner.Run(ctx, []dossier.Subject{{Name: "Virat Kohli"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, summary.Succeeded)
}

func TestRunRequiresSubjects(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeResolver{}, nil)
	_, err := h.runner.Run(context.Background(), nil)
	require.ErrorIs(t, err, dossier.ErrNoSubjects)
}
