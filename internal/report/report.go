// Package report renders an AnalysisResult for people and for other tools: the full
// result as indented JSON or YAML, and a short console summary.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/rewired-gh/chatconv/internal/models"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by Encode.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// topStatuses bounds the per-city status list in the summary.
const topStatuses = 5

// ErrUnknownFormat is returned by Encode for formats other than json and yaml.
var ErrUnknownFormat = errors.New("unknown output format")

// Encode writes result to w in the given format. An empty format means JSON.
func Encode(w io.Writer, result models.AnalysisResult, format string) error {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteSummary prints global and per-city totals followed by each city's most common
// roster statuses.
func WriteSummary(w io.Writer, result models.AnalysisResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	buca, bog, g := result.Bucaramanga, result.Bogota, result.Global

	fmt.Fprintf(tw, "\t%s\t%s\tTotal\t\n", models.CityBucaramanga, models.CityBogota)
	row := func(label string, a, b, total int) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", label,
			humanize.Comma(int64(a)), humanize.Comma(int64(b)), humanize.Comma(int64(total)))
	}
	row("Chat users", buca.ChatUsers, bog.ChatUsers, g.TotalChatUsers)
	row("Valid phones", buca.ValidPhones, bog.ValidPhones, g.TotalValidPhones)
	row("Registrations", buca.Registrations, bog.Registrations, g.TotalRegistrations)
	row("Conversions", buca.Conversions, bog.Conversions, g.TotalConversions)
	fmt.Fprintf(tw, "Conversion rate\t%s\t%s\t%s\t\n",
		Rate(buca.ConversionRate), Rate(bog.ConversionRate), Rate(g.GlobalConversionRate))
	if err := tw.Flush(); err != nil {
		return err
	}

	if first, last, ok := Period(g.DailyStats); ok {
		fmt.Fprintf(w, "\nPeriod: %s to %s (%d active days)\n", first, last, len(g.DailyStats))
	}

	for _, city := range []struct {
		name     string
		statuses map[string]int
	}{
		{models.CityBucaramanga, buca.Statuses},
		{models.CityBogota, bog.Statuses},
	} {
		if len(city.statuses) == 0 {
			continue
		}
		parts := make([]string, 0, topStatuses)
		for _, s := range TopStatuses(city.statuses, topStatuses) {
			parts = append(parts, fmt.Sprintf("%s %s", s.Name, humanize.Comma(int64(s.Count))))
		}
		if _, err := fmt.Fprintf(w, "%s statuses: %s\n", city.name, strings.Join(parts, ", ")); err != nil {
			return err
		}
	}
	return nil
}

// StatusCount is one entry of a status tally.
type StatusCount struct {
	Name  string
	Count int
}

// TopStatuses returns the n most frequent statuses, ties broken by name.
func TopStatuses(statuses map[string]int, n int) []StatusCount {
	out := make([]StatusCount, 0, len(statuses))
	for name, count := range statuses {
		out = append(out, StatusCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Rate formats a percentage with two decimals.
func Rate(pct float64) string {
	return fmt.Sprintf("%.2f%%", pct)
}

// Period returns the first and last dates of ascending daily buckets.
func Period(daily []models.DailyStats) (first, last string, ok bool) {
	if len(daily) == 0 {
		return "", "", false
	}
	return daily[0].Date, daily[len(daily)-1].Date, true
}
