// Package analysis composes the reconciliation pipeline: per city it builds user
// records, matches them against that city's roster and buckets them; it then merges
// both cities into a global summary.
//
// Row-level anomalies never fail a run. The only error Analyze returns is a missing
// input, since all four exports are mandatory.
package analysis

import (
	"errors"
	"fmt"
	"time"

	"github.com/rewired-gh/chatconv/internal/logger"
	"github.com/rewired-gh/chatconv/internal/matcher"
	"github.com/rewired-gh/chatconv/internal/metrics"
	"github.com/rewired-gh/chatconv/internal/models"
	"github.com/rewired-gh/chatconv/internal/normalize"
	"github.com/rewired-gh/chatconv/internal/records"
	"github.com/rewired-gh/chatconv/internal/stats"
)

// ErrMissingInput is wrapped by Analyze when one of the four inputs is nil.
var ErrMissingInput = errors.New("missing input")

// Options configures an Engine.
type Options struct {
	// Location interprets zone-less dates and defines bucket boundaries. Nil means UTC.
	Location *time.Location
	// KeepInvalidPhones retains chat rows without a valid mobile (with an empty phone).
	KeepInvalidPhones bool
	// NoStatusLabel replaces blank roster statuses. Empty means "Sin Estado".
	NoStatusLabel string
	// Now substitutes unparseable dates. Nil means the wall clock.
	Now func() time.Time
}

// Inputs holds the four parsed exports.
type Inputs struct {
	ChatBucaramanga   []models.RawInteractionRow
	ChatBogota        []models.RawInteractionRow
	RosterBucaramanga []models.RawRegistrationRow
	RosterBogota      []models.RawRegistrationRow
}

// Validate checks that every input was provided. Empty slices are allowed.
func (in *Inputs) Validate() error {
	switch {
	case in.ChatBucaramanga == nil:
		return fmt.Errorf("%w: chat export for %s", ErrMissingInput, models.CityBucaramanga)
	case in.ChatBogota == nil:
		return fmt.Errorf("%w: chat export for %s", ErrMissingInput, models.CityBogota)
	case in.RosterBucaramanga == nil:
		return fmt.Errorf("%w: roster for %s", ErrMissingInput, models.CityBucaramanga)
	case in.RosterBogota == nil:
		return fmt.Errorf("%w: roster for %s", ErrMissingInput, models.CityBogota)
	}
	return nil
}

// Engine runs the reconciliation pipeline.
type Engine struct {
	opts    Options
	dates   *normalize.Dates
	builder *records.Builder
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.NoStatusLabel == "" {
		opts.NoStatusLabel = matcher.DefaultNoStatus
	}
	dates := normalize.NewDates(opts.Location)
	if opts.Now != nil {
		dates.Now = opts.Now
	}
	return &Engine{
		opts:  opts,
		dates: dates,
		builder: &records.Builder{
			Dates:             dates,
			KeepInvalidPhones: opts.KeepInvalidPhones,
		},
	}
}

// Analyze reconciles both cities and builds the global summary.
func (e *Engine) Analyze(in Inputs) (models.AnalysisResult, error) {
	start := time.Now()
	if err := in.Validate(); err != nil {
		metrics.RunFailures.Inc()
		return models.AnalysisResult{}, err
	}
	metrics.Runs.Inc()
	defer metrics.ObserveRunDuration(start)

	buca := e.AnalyzeCity(models.CityBucaramanga, in.ChatBucaramanga, in.RosterBucaramanga)
	bog := e.AnalyzeCity(models.CityBogota, in.ChatBogota, in.RosterBogota)

	result := models.AnalysisResult{
		Bucaramanga: buca,
		Bogota:      bog,
		Global:      e.Global(buca, bog),
	}
	metrics.ConversionRate.WithLabelValues("global").Set(result.Global.GlobalConversionRate)

	logger.Info("Analysis complete: chat_users=%d conversions=%d rate=%.2f%% in %v",
		result.Global.TotalChatUsers, result.Global.TotalConversions,
		result.Global.GlobalConversionRate, time.Since(start))
	return result, nil
}

// AnalyzeCity runs the pipeline for one city against its own roster only.
func (e *Engine) AnalyzeCity(city string, chat []models.RawInteractionRow, roster []models.RawRegistrationRow) models.CityAnalysis {
	metrics.RowsRead.WithLabelValues(city, "chat").Add(float64(len(chat)))
	metrics.RowsRead.WithLabelValues(city, "roster").Add(float64(len(roster)))

	users, built := e.builder.Build(city, chat)
	if !e.opts.KeepInvalidPhones && built.InvalidPhone > 0 {
		metrics.RowsDropped.WithLabelValues(city, "invalid_phone").Add(float64(built.InvalidPhone))
	}
	if built.Skipped > 0 {
		metrics.RowsDropped.WithLabelValues(city, "error").Add(float64(built.Skipped))
	}

	idx := matcher.NewIndex(roster, e.dates, e.opts.NoStatusLabel)
	matched, report := idx.Match(users)
	metrics.Matches.WithLabelValues(city).Add(float64(report.Matched))
	rosterStats := idx.Stats()

	daily, monthly := stats.Aggregate(matched, e.opts.Location)

	analysis := models.CityAnalysis{
		ChatUsers:      len(matched),
		ValidPhones:    report.WithPhone,
		Registrations:  rosterStats.Registrations,
		Conversions:    report.Matched,
		ConversionRate: models.Percent(report.Matched, len(matched)),
		Statuses:       rosterStats.Statuses,
		DailyStats:     daily,
		MonthlyStats:   monthly,
		Users:          matched,
	}
	metrics.ConversionRate.WithLabelValues(city).Set(analysis.ConversionRate)

	logger.Info("Processed %s: chat_users=%d valid_phones=%d roster=%d conversions=%d rate=%.2f%%",
		city, analysis.ChatUsers, analysis.ValidPhones, analysis.Registrations,
		analysis.Conversions, analysis.ConversionRate)
	return analysis
}

// Global sums the two cities and recomputes buckets over the union of their users;
// distinct-user counts do not add across cities.
func (e *Engine) Global(a, b models.CityAnalysis) models.GlobalAnalysis {
	union := make([]models.UserRecord, 0, len(a.Users)+len(b.Users))
	union = append(union, a.Users...)
	union = append(union, b.Users...)
	daily, monthly := stats.Aggregate(union, e.opts.Location)

	chatUsers := a.ChatUsers + b.ChatUsers
	conversions := a.Conversions + b.Conversions
	return models.GlobalAnalysis{
		TotalChatUsers:       chatUsers,
		TotalValidPhones:     a.ValidPhones + b.ValidPhones,
		TotalConversions:     conversions,
		TotalRegistrations:   a.Registrations + b.Registrations,
		GlobalConversionRate: models.Percent(conversions, chatUsers),
		DailyStats:           daily,
		MonthlyStats:         monthly,
	}
}
