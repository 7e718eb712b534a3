// Package resolve merges the per-source extractions for one subject into a
// single profile.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/player-dossier/internal/dossier"
	"github.com/JakeFAU/player-dossier/internal/extract/statsguru"
	"github.com/JakeFAU/player-dossier/internal/extract/wiki"
	"github.com/JakeFAU/player-dossier/internal/sanitize"
)

// MinBirthYear is the earliest birth year accepted when deriving an age.
const MinBirthYear = 1900

// Infobox keys tried for each derived field, in order.
var (
	bornKeys    = []string{"Born"}
	roleKeys    = []string{"Role"}
	countryKeys = []string{"National side", "Country"}
	teamKeys    = []string{"Current team", "Team"}
	matchKeys   = []string{"Matches", "No. of IPL matches", "IPL matches"}
	runKeys     = []string{"Runs", "Runs scored", "IPL runs"}
	wicketKeys  = []string{"Wickets", "IPL wickets"}
)

var (
	fourDigitYear = regexp.MustCompile(`\d{4}`)
	digitsOnly    = regexp.MustCompile(`^\d+$`)
)

// WikiSource is the mandatory encyclopedia lookup.
type WikiSource interface {
	Extract(ctx context.Context, title string) (wiki.Page, error)
}

// BirthDateSource reads a date of birth from linked data.
type BirthDateSource interface {
	BirthDate(ctx context.Context, entityID string) dossier.Result[string]
}

// StatsSource reads statistics engine pages.
type StatsSource interface {
	Summary(ctx context.Context, playerID, statType string) (dossier.StatsTable, error)
	ProfileLine(ctx context.Context, playerID string) (statsguru.PlayerInfo, error)
}

// Resolver builds profiles. Only the wiki source is required; the others
// may be nil.
type Resolver struct {
	wiki      WikiSource
	birthDate BirthDateSource
	stats     StatsSource
	clock     dossier.Clock
	logger    *zap.Logger
}

// New builds a Resolver.
func New(w WikiSource, b BirthDateSource, s StatsSource, clock dossier.Clock, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{wiki: w, birthDate: b, stats: s, clock: clock, logger: logger}
}

// Resolve produces the merged profile for subject. A failure of the wiki
// source is a *dossier.ResolutionError; failures of optional sources are
// recorded in Profile.Warnings and otherwise ignored.
func (r *Resolver) Resolve(ctx context.Context, subject dossier.Subject) (dossier.Profile, error) {
	name := strings.TrimSpace(subject.Name)
	if name == "" {
		return dossier.Profile{}, &dossier.ResolutionError{Subject: subject.Name, Cause: errors.New("empty name")}
	}
	page, err := r.wiki.Extract(ctx, name)
	if err != nil {
		return dossier.Profile{}, &dossier.ResolutionError{Subject: name, Cause: err}
	}

	now := r.clock.Now()
	p := dossier.Profile{
		Name:        page.Title,
		URL:         page.URL,
		Extract:     page.Extract,
		Infobox:     page.Infobox,
		WikidataID:  page.WikidataID,
		ImageURL:    page.ImageURL,
		PlayerID:    subject.PlayerID,
		PlayerURL:   subject.PlayerURL,
		RetrievedAt: now,
	}

	birth := r.lookupBirthDate(ctx, page.WikidataID)
	if birth.Outcome == dossier.Failed {
		p.Warnings = append(p.Warnings, fmt.Errorf("wikidata unavailable: %w", birth.Err))
	}
	p.BirthDate = birth.Or("")

	stats := r.lookupStats(ctx, subject.PlayerID)
	p.Warnings = append(p.Warnings, stats.warnings...)
	p.Batting = stats.batting.Or(nil)
	p.Bowling = stats.bowling.Or(nil)

	p.Basic = derive(page.Infobox, subject.Team, now.Year())
	if p.Basic.Age == "" {
		p.Basic.Age = AgeFromText(p.BirthDate, now.Year())
	}
	info := stats.info.Or(statsguru.PlayerInfo{})
	if p.Basic.Age == "" {
		p.Basic.Age = AgeFromText(info.Born, now.Year())
	}
	backfill(&p.Basic, p.Batting.Row("T20Is"), p.Bowling.Row("T20Is"))
	if stats.any() {
		p.Summary = summary(info, p.Batting, p.Bowling)
	}

	r.logger.Debug("profile resolved",
		zap.String("subject", name),
		zap.String("title", p.Name),
		zap.Bool("birth_date", birth.Ok()),
		zap.Stringer("batting", stats.batting.Outcome),
		zap.Stringer("bowling", stats.bowling.Outcome),
		zap.Int("warnings", len(p.Warnings)),
	)
	return p, nil
}

func (r *Resolver) lookupBirthDate(ctx context.Context, entityID string) dossier.Result[string] {
	if r.birthDate == nil || entityID == "" {
		return dossier.Missing[string]()
	}
	res := r.birthDate.BirthDate(ctx, entityID)
	if res.Outcome == dossier.Failed {
		r.logger.Warn("birth date lookup failed", zap.String("entity", entityID), zap.Error(res.Err))
	}
	return res
}

type statsLookup struct {
	info     dossier.Result[statsguru.PlayerInfo]
	batting  dossier.Result[dossier.StatsTable]
	bowling  dossier.Result[dossier.StatsTable]
	warnings []error
}

func (s statsLookup) any() bool {
	return s.info.Ok() || s.batting.Ok() || s.bowling.Ok()
}

func (r *Resolver) lookupStats(ctx context.Context, playerID string) statsLookup {
	out := statsLookup{
		info:    dossier.Missing[statsguru.PlayerInfo](),
		batting: dossier.Missing[dossier.StatsTable](),
		bowling: dossier.Missing[dossier.StatsTable](),
	}
	if r.stats == nil || playerID == "" {
		return out
	}
	if info, err := r.stats.ProfileLine(ctx, playerID); err != nil {
		out.info = dossier.Failure[statsguru.PlayerInfo](err)
		out.warnings = append(out.warnings, fmt.Errorf("profile line: %w", err))
	} else {
		out.info = dossier.Found(info)
	}
	out.batting = r.table(ctx, playerID, statsguru.Batting, &out.warnings)
	out.bowling = r.table(ctx, playerID, statsguru.Bowling, &out.warnings)
	for _, w := range out.warnings {
		r.logger.Warn("stats lookup failed", zap.String("player_id", playerID), zap.Error(w))
	}
	return out
}

func (r *Resolver) table(ctx context.Context, playerID, statType string, warnings *[]error) dossier.Result[dossier.StatsTable] {
	t, err := r.stats.Summary(ctx, playerID, statType)
	if err != nil {
		*warnings = append(*warnings, fmt.Errorf("%s summary: %w", statType, err))
		return dossier.Failure[dossier.StatsTable](err)
	}
	return dossier.Found(t)
}

// derive applies the field precedence: hint, then infobox lookups (exact
// keys before relaxed matches), then empty.
func derive(box dossier.Infobox, teamHint string, currentYear int) dossier.Basic {
	b := dossier.Basic{
		Age:     AgeFromText(box.Lookup(bornKeys...), currentYear),
		Role:    sanitize.Text(box.Lookup(roleKeys...)),
		Country: sanitize.Text(box.Lookup(countryKeys...)),
		Team:    sanitize.Text(strings.TrimSpace(teamHint)),
		Matches: Numeric(box.Lookup(matchKeys...)),
		Runs:    Numeric(box.Lookup(runKeys...)),
		Wickets: Numeric(box.Lookup(wicketKeys...)),
	}
	if b.Team == "" {
		b.Team = sanitize.Text(box.Lookup(teamKeys...))
	}
	return b
}

// backfill fills empty counters from the T20I rows.
func backfill(b *dossier.Basic, batting, bowling map[string]string) {
	if b.Matches == "" {
		b.Matches = Numeric(batting["Mat"])
	}
	if b.Runs == "" {
		b.Runs = Numeric(batting["Runs"])
	}
	if b.Wickets == "" {
		b.Wickets = Numeric(bowling["Wkts"])
	}
}

func summary(info statsguru.PlayerInfo, batting, bowling dossier.StatsTable) []dossier.Field {
	t20Bat, t20Bowl := batting.Row("T20Is"), bowling.Row("T20Is")
	odiBat, odiBowl := batting.Row("ODIs"), bowling.Row("ODIs")
	return []dossier.Field{
		{Label: "Profile", Value: info.Line},
		{Label: "Born", Value: info.Born},
		{Label: "T20I matches", Value: t20Bat["Mat"]},
		{Label: "T20I runs", Value: t20Bat["Runs"]},
		{Label: "T20I wickets", Value: t20Bowl["Wkts"]},
		{Label: "ODI matches", Value: odiBat["Mat"]},
		{Label: "ODI runs", Value: odiBat["Runs"]},
		{Label: "ODI wickets", Value: odiBowl["Wkts"]},
	}
}

// AgeFromText finds the first four-digit year in text and returns the age
// it implies in currentYear. Years before MinBirthYear or after currentYear
// give "".
func AgeFromText(text string, currentYear int) string {
	m := fourDigitYear.FindString(text)
	if m == "" {
		return ""
	}
	year, err := strconv.Atoi(m)
	if err != nil || year < MinBirthYear || year > currentYear {
		return ""
	}
	return strconv.Itoa(currentYear - year)
}

// Numeric returns s with thousands separators removed when what remains is
// a plain non-negative integer, and "" otherwise.
func Numeric(s string) string {
	v := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if !digitsOnly.MatchString(v) {
		return ""
	}
	return v
}
