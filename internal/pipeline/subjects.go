package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/player-dossier/internal/client"
	"github.com/JakeFAU/player-dossier/internal/dossier"
	"github.com/JakeFAU/player-dossier/internal/extract/listing"
	"github.com/JakeFAU/player-dossier/internal/metrics"
)

// DefaultListingURL is the auction listing page used when no other source
// is configured.
const DefaultListingURL = "https://www.espncricinfo.com/auction/ipl-2026-auction-1515016/all-players"

// ErrListingForbidden is returned when the listing page refuses plain
// requests and no browser fallback produced subjects.
var ErrListingForbidden = errors.New(
	"ESPN returned 403 (bot protection). Save the auction page HTML from your browser " +
		"and rerun with --auction-html-file",
)

// Sources lists where subjects may come from. The first non-empty source
// in field order wins.
type Sources struct {
	PlayerURL   string
	Players     []string
	PlayersFile string
	ListingFile string
	ListingURL  string
	// Limit caps the number of subjects; zero means no cap.
	Limit int
}

// Loader turns Sources into an ordered, de-duplicated subject list.
type Loader struct {
	fetcher  dossier.Fetcher
	headless dossier.Fetcher
	detector dossier.HeadlessDetector
	logger   *zap.Logger
}

// NewLoader builds a Loader. headless and detector may be nil, which
// disables browser promotion of the listing page.
func NewLoader(fetcher dossier.Fetcher, headless dossier.Fetcher, detector dossier.HeadlessDetector, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{fetcher: fetcher, headless: headless, detector: detector, logger: logger}
}

// Load resolves src into subjects. An empty result is dossier.ErrNoSubjects.
func (l *Loader) Load(ctx context.Context, src Sources) ([]dossier.Subject, error) {
	subjects, err := l.load(ctx, src)
	if err != nil {
		return nil, err
	}
	subjects = listing.Dedupe(subjects)
	if src.Limit > 0 && len(subjects) > src.Limit {
		subjects = subjects[:src.Limit]
	}
	if len(subjects) == 0 {
		return nil, dossier.ErrNoSubjects
	}
	return subjects, nil
}

func (l *Loader) load(ctx context.Context, src Sources) ([]dossier.Subject, error) {
	switch {
	case strings.TrimSpace(src.PlayerURL) != "":
		subject, err := listing.ParsePlayerURL(src.PlayerURL)
		if err != nil {
			return nil, fmt.Errorf("player url: %w", err)
		}
		return []dossier.Subject{subject}, nil
	case len(src.Players) > 0:
		out := make([]dossier.Subject, 0, len(src.Players))
		for _, name := range src.Players {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, dossier.Subject{Name: name})
			}
		}
		return out, nil
	case src.PlayersFile != "":
		return ReadSubjectsFile(src.PlayersFile)
	case src.ListingFile != "":
		raw, err := os.ReadFile(src.ListingFile)
		if err != nil {
			return nil, fmt.Errorf("read listing file: %w", err)
		}
		subjects, strategy := listing.ParseWith(string(raw), listing.DefaultStrategies())
		l.logger.Info("listing file parsed",
			zap.String("path", src.ListingFile),
			zap.String("strategy", strategy),
			zap.Int("subjects", len(subjects)),
		)
		return subjects, nil
	default:
		target := src.ListingURL
		if target == "" {
			target = DefaultListingURL
		}
		return l.fetchListing(ctx, target)
	}
}

// fetchListing fetches the live listing page, re-rendering it in a browser
// when the plain response yields nothing and looks script-driven or was
// refused.
func (l *Loader) fetchListing(ctx context.Context, target string) ([]dossier.Subject, error) {
	body, err := l.fetcher.Fetch(ctx, target, nil)
	probe := dossier.FetchResponse{URL: target, StatusCode: 200, Body: body}
	switch {
	case client.IsForbidden(err):
		probe.StatusCode = 403
	case err != nil:
		return nil, fmt.Errorf("fetch listing: %w", err)
	}

	var subjects []dossier.Subject
	if probe.StatusCode == 200 {
		subjects = listing.Parse(string(body))
		if len(subjects) > 0 {
			return subjects, nil
		}
	}

	if promoted, ok := l.maybePromote(ctx, probe); ok {
		return promoted, nil
	}
	if probe.StatusCode == 403 {
		return nil, ErrListingForbidden
	}
	return subjects, nil
}

func (l *Loader) maybePromote(ctx context.Context, probe dossier.FetchResponse) ([]dossier.Subject, bool) {
	if l.headless == nil || l.detector == nil || !l.detector.ShouldPromote(probe) {
		return nil, false
	}
	metrics.ObserveHeadlessPromotion()
	body, err := l.headless.Fetch(ctx, probe.URL, nil)
	if err != nil {
		l.logger.Warn("headless promotion failed", zap.String("url", probe.URL), zap.Error(err))
		return nil, false
	}
	subjects, strategy := listing.ParseWith(string(body), listing.DefaultStrategies())
	l.logger.Info("headless promotion applied",
		zap.String("url", probe.URL),
		zap.String("strategy", strategy),
		zap.Int("subjects", len(subjects)),
	)
	return subjects, len(subjects) > 0
}

// ReadSubjectsFile reads subjects from a text file (one name per line,
// blank lines and '#' comments skipped) or, for .yaml and .yml files, a
// YAML sequence whose items are names or mappings with hints.
func ReadSubjectsFile(path string) ([]dossier.Subject, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read players file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseSubjectsYAML(raw)
	default:
		return parseSubjectsText(raw), nil
	}
}

func parseSubjectsText(raw []byte) []dossier.Subject {
	var out []dossier.Subject
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, dossier.Subject{Name: line})
	}
	return out
}

func parseSubjectsYAML(raw []byte) ([]dossier.Subject, error) {
	var nodes []yaml.Node
	if err := yaml.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("parse players yaml: %w", err)
	}
	out := make([]dossier.Subject, 0, len(nodes))
	for i := range nodes {
		node := &nodes[i]
		var subject dossier.Subject
		switch node.Kind {
		case yaml.ScalarNode:
			subject.Name = node.Value
		case yaml.MappingNode:
			if err := node.Decode(&subject); err != nil {
				return nil, fmt.Errorf("players yaml line %d: %w", node.Line, err)
			}
		default:
			return nil, fmt.Errorf("players yaml line %d: expected a name or a mapping", node.Line)
		}
		subject.Name = strings.TrimSpace(subject.Name)
		if subject.Name == "" {
			continue
		}
		out = append(out, subject)
	}
	return out, nil
}
