// Package reader loads the four spreadsheet exports into engine inputs.
//
// XLSX workbooks are read with excelize; CSV files with encoding/csv. The first row of
// a sheet is the header. Numeric cells become float64 so that serial dates and ages
// keep their numeric meaning. Digit strings with a leading zero or plus sign stay
// text, blank cells are omitted and everything else stays a string.
package reader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rewired-gh/chatconv/internal/analysis"
	"github.com/rewired-gh/chatconv/internal/logger"
	"github.com/rewired-gh/chatconv/internal/models"
	"github.com/rewired-gh/chatconv/internal/rows"
	"github.com/schollz/progressbar/v3"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

var numericCell = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)

// ErrUnsupportedFormat is returned for files that are neither XLSX nor CSV.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Paths locates the four exports.
type Paths struct {
	ChatBucaramanga   string
	ChatBogota        string
	RosterBucaramanga string
	RosterBogota      string
}

// Options selects the worksheet of each workbook kind. Exports from the chat
// platform carry the interactions on their second sheet.
type Options struct {
	ChatSheet   int
	RosterSheet int
	Progress    bool
}

// DefaultOptions matches the layout of the platform exports.
func DefaultOptions() Options {
	return Options{ChatSheet: 1, RosterSheet: 0}
}

// LoadInputs reads the four exports concurrently. Any missing path or unreadable
// file fails the whole load.
func LoadInputs(ctx context.Context, paths Paths, opts Options) (analysis.Inputs, error) {
	var in analysis.Inputs

	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.Default(4, "reading exports")
	}
	done := func() {
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		recs, err := load(ctx, paths.ChatBucaramanga, opts.ChatSheet, "chat", models.CityBucaramanga)
		if err != nil {
			return err
		}
		in.ChatBucaramanga = rows.Interactions(recs)
		done()
		return nil
	})
	g.Go(func() error {
		recs, err := load(ctx, paths.ChatBogota, opts.ChatSheet, "chat", models.CityBogota)
		if err != nil {
			return err
		}
		in.ChatBogota = rows.Interactions(recs)
		done()
		return nil
	})
	g.Go(func() error {
		recs, err := load(ctx, paths.RosterBucaramanga, opts.RosterSheet, "roster", models.CityBucaramanga)
		if err != nil {
			return err
		}
		in.RosterBucaramanga = rows.Registrations(recs)
		done()
		return nil
	})
	g.Go(func() error {
		recs, err := load(ctx, paths.RosterBogota, opts.RosterSheet, "roster", models.CityBogota)
		if err != nil {
			return err
		}
		in.RosterBogota = rows.Registrations(recs)
		done()
		return nil
	})

	if err := g.Wait(); err != nil {
		return analysis.Inputs{}, err
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return in, nil
}

func load(ctx context.Context, path string, sheet int, kind, city string) ([]rows.Record, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: %s export for %s", analysis.ErrMissingInput, kind, city)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	recs, err := ReadRecords(path, sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s export for %s: %w", kind, city, err)
	}
	logger.Info("Read %d %s rows for %s from %s", len(recs), kind, city, filepath.Base(path))
	return recs, nil
}

// ReadRecords reads one sheet of path as header-keyed records. sheet is ignored for
// CSV files; an out-of-range sheet falls back to the first one.
func ReadRecords(path string, sheet int) ([]rows.Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readWorkbook(path, sheet)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func readWorkbook(path string, sheet int) ([]rows.Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Failed to close workbook %s: %v", path, err)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	if sheet < 0 || sheet >= len(sheets) {
		logger.Warn("Workbook %s has %d sheets, reading %q instead of sheet %d",
			filepath.Base(path), len(sheets), sheets[0], sheet)
		sheet = 0
	}

	grid, err := f.GetRows(sheets[sheet], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[sheet], err)
	}
	return toRecords(grid), nil
}

// ReadCSV reads comma-separated records with a header row.
func ReadCSV(r io.Reader) ([]rows.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	grid, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(grid) > 0 && len(grid[0]) > 0 {
		grid[0][0] = strings.TrimPrefix(grid[0][0], "\ufeff")
	}
	return toRecords(grid), nil
}

func toRecords(grid [][]string) []rows.Record {
	recs := make([]rows.Record, 0)
	if len(grid) == 0 {
		return recs
	}

	header := grid[0]
	for _, line := range grid[1:] {
		rec := make(rows.Record, len(header))
		for i, cell := range line {
			if i >= len(header) || strings.TrimSpace(header[i]) == "" {
				continue
			}
			if v := cellValue(cell); v != nil {
				rec[header[i]] = v
			}
		}
		if len(rec) > 0 {
			recs = append(recs, rec)
		}
	}
	return recs
}

func cellValue(cell string) any {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	if !numericCell.MatchString(s) || textualNumber(s) {
		return s
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// textualNumber reports digit strings that only make sense as text: an explicit
// plus sign or a leading zero, as in phone numbers and zero-padded codes.
func textualNumber(s string) bool {
	if s[0] == '+' {
		return true
	}
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}
