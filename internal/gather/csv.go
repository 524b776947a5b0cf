package gather

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"candlebt/internal/domain"
	"candlebt/internal/provider"
	"candlebt/internal/store"
)

// ErrBadCSV is returned when a CSV file lacks required columns or holds an
// unparsable value.
var ErrBadCSV = errors.New("malformed bar csv")

// Compile-time interface check.
var _ Gatherer = (*CSVImporter)(nil)

// Header aliases, matched case-insensitively.
var (
	timeColumns   = []string{"timestamp", "datetime", "date", "time"}
	volumeColumns = []string{"volume", "vol"}
)

// Timestamp layouts tried in order. Layouts without an offset are read in
// the importer's location.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// CSVImporter loads one symbol's bars from a CSV file into a BarStore.
type CSVImporter struct {
	path     string
	symbol   string
	market   domain.Market
	interval domain.Interval
	loc      *time.Location
	store    store.BarStore
	log      *slog.Logger
}

// NewCSVImporter creates a CSVImporter. Timestamps without an offset are
// interpreted in loc (UTC when nil).
func NewCSVImporter(path, symbol string, market domain.Market, interval domain.Interval, loc *time.Location, s store.BarStore) *CSVImporter {
	if loc == nil {
		loc = time.UTC
	}
	// A yfinance-style ticker names its own market and is stored bare.
	symbol, suffixMarket, ok := provider.SplitTicker(symbol)
	if ok {
		market = suffixMarket
	}
	return &CSVImporter{
		path:     path,
		symbol:   symbol,
		market:   market,
		interval: interval,
		loc:      loc,
		store:    s,
		log:      slog.Default().With("gatherer", "csv-import"),
	}
}

// SymbolFromPath derives a ticker from a file name such as
// "data/HDFCBANK.NS.csv".
func SymbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Name returns the gatherer identifier.
func (g *CSVImporter) Name() string { return "csv-import" }

// Run parses the CSV file and merges its bars into the store.
func (g *CSVImporter) Run(ctx context.Context) error {
	f, err := os.Open(g.path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", g.path, err)
	}
	defer f.Close()

	bars, err := ParseCSV(f, g.symbol, g.loc)
	if err != nil {
		return fmt.Errorf("reading %s: %w", g.path, err)
	}
	if len(bars) == 0 {
		g.log.Warn("no bars in file", "path", g.path)
		return nil
	}
	if err := g.store.WriteBars(ctx, g.market, g.interval, bars); err != nil {
		return fmt.Errorf("writing %s bars: %w", g.symbol, err)
	}
	g.log.Info("imported bars",
		"symbol", g.symbol,
		"market", g.market,
		"interval", g.interval,
		"bars", len(bars),
		"from", bars[0].Timestamp,
		"to", bars[len(bars)-1].Timestamp,
	)
	return nil
}

// ParseCSV reads bars for symbol from r. The first row is a header naming a
// timestamp column (timestamp, datetime, date or time), open, high, low,
// close and optionally volume. Rows with an empty or NaN price are skipped.
// The result is sorted by timestamp; for duplicate timestamps the last row
// wins.
func ParseCSV(r io.Reader, symbol string, loc *time.Location) ([]domain.Bar, error) {
	if loc == nil {
		loc = time.UTC
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	byTime := make(map[int64]domain.Bar)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		b, ok, err := parseRow(rec, cols, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadCSV, line, err)
		}
		if !ok {
			continue
		}
		b.Symbol = symbol
		byTime[b.Timestamp.UnixNano()] = b
	}

	bars := make([]domain.Bar, 0, len(byTime))
	for _, b := range byTime {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

// columns holds the field index of each bar value; volume is -1 when absent.
type columns struct {
	time, open, high, low, close, volume int
}

func mapColumns(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	find := func(names ...string) int {
		for _, n := range names {
			if i, ok := idx[n]; ok {
				return i
			}
		}
		return -1
	}

	c := columns{
		time:   find(timeColumns...),
		open:   find("open"),
		high:   find("high"),
		low:    find("low"),
		close:  find("close"),
		volume: find(volumeColumns...),
	}
	required := []struct {
		name string
		idx  int
	}{
		{"timestamp", c.time},
		{"open", c.open},
		{"high", c.high},
		{"low", c.low},
		{"close", c.close},
	}
	for _, r := range required {
		if r.idx < 0 {
			return columns{}, fmt.Errorf("%w: missing %s column", ErrBadCSV, r.name)
		}
	}
	return c, nil
}

// parseRow returns ok=false for rows that carry no prices.
func parseRow(rec []string, c columns, loc *time.Location) (domain.Bar, bool, error) {
	field := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	ts, err := parseTime(field(c.time), loc)
	if err != nil {
		return domain.Bar{}, false, err
	}

	var prices [4]float64
	for k, i := range []int{c.open, c.high, c.low, c.close} {
		s := field(i)
		if s == "" {
			return domain.Bar{}, false, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Bar{}, false, fmt.Errorf("price %q: %v", s, err)
		}
		if math.IsNaN(v) {
			return domain.Bar{}, false, nil
		}
		prices[k] = v
	}

	var vol int64
	if s := field(c.volume); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Bar{}, false, fmt.Errorf("volume %q: %v", s, err)
		}
		if !math.IsNaN(v) {
			vol = int64(v)
		}
	}

	return domain.Bar{
		Timestamp: ts.UTC(),
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    vol,
	}, true, nil
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
