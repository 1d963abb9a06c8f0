// Package collection reads the user's collection export, a CSV file with one
// row per owned printing.
package collection

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Column names recognised in the export header.
const (
	ColName            = "Name"
	ColSetCode         = "Set code"
	ColCollectorNumber = "Collector number"
	ColQuantity        = "Quantity"
	ColLanguage        = "Language"
	ColFoil            = "Foil"
	ColFinish          = "Finish"
	ColPromo           = "Promo?"
	ColPromos          = "Promos"
	ColMyPrice         = "myPrice"
)

var requiredColumns = []string{ColName, ColSetCode, ColCollectorNumber, ColQuantity}

// Finish values. Anything unrecognised reads as FinishNormal.
const (
	FinishNormal = "normal"
	FinishFoil   = "foil"
	FinishEtched = "etched"
)

// DefaultLanguage is used when a row has no Language value.
const DefaultLanguage = "en"

// ErrNoEntries is returned by callers that require at least one valid row.
var ErrNoEntries = errors.New("collection has no valid entries")

// Entry is one validated collection row.
type Entry struct {
	Line            int      `json:"line"`
	Name            string   `json:"Name"`
	SetCode         string   `json:"Set code"`
	CollectorNumber string   `json:"Collector number"`
	Quantity        int      `json:"Quantity"`
	Language        string   `json:"Language"`
	Finish          string   `json:"Finish"`
	Promo           bool     `json:"Promo"`
	MyPrice         *float64 `json:"myPrice,omitempty"`
}

// ReadOptions configures ReadCSV.
type ReadOptions struct {
	// DefaultLanguage replaces an empty Language value. Defaults to "en".
	DefaultLanguage string
}

// ReadStats counts what happened to the rows of an export.
type ReadStats struct {
	Rows           int
	Valid          int
	MissingFields  int
	BadQuantity    int
	MissingColumns []string
}

// Dropped returns the number of rows that did not become entries.
func (s ReadStats) Dropped() int {
	return s.MissingFields + s.BadQuantity
}

// ReadFile reads a collection export from disk.
func ReadFile(path string, opts ReadOptions) ([]Entry, ReadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ReadStats{}, fmt.Errorf("failed to open collection: %w", err)
	}
	defer f.Close()

	return ReadCSV(f, opts)
}

// ReadCSV parses a collection export. Rows missing a required value or with a
// non-positive or non-integer quantity are dropped and counted, never fatal.
// Only an unreadable document returns an error.
func ReadCSV(r io.Reader, opts ReadOptions) ([]Entry, ReadStats, error) {
	var stats ReadStats

	lang := strings.ToLower(strings.TrimSpace(opts.DefaultLanguage))
	if lang == "" {
		lang = DefaultLanguage
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, stats, nil
	}
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			stats.MissingColumns = append(stats.MissingColumns, c)
		}
	}

	var entries []Entry
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return entries, stats, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		if blank(record) {
			continue
		}
		stats.Rows++

		get := func(col string) string {
			i, ok := cols[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		entry := Entry{
			Line:            line,
			Name:            get(ColName),
			SetCode:         get(ColSetCode),
			CollectorNumber: get(ColCollectorNumber),
			Language:        strings.ToLower(get(ColLanguage)),
			Finish:          parseFinish(firstNonEmpty(get(ColFoil), get(ColFinish))),
			Promo:           truthy(get(ColPromo)) || truthy(get(ColPromos)),
			MyPrice:         parsePrice(get(ColMyPrice)),
		}
		if entry.Language == "" {
			entry.Language = lang
		}

		qty := get(ColQuantity)
		if entry.Name == "" || entry.SetCode == "" || entry.CollectorNumber == "" || qty == "" {
			stats.MissingFields++
			continue
		}

		n, err := strconv.Atoi(qty)
		if err != nil || n <= 0 {
			stats.BadQuantity++
			continue
		}
		entry.Quantity = n

		entries = append(entries, entry)
		stats.Valid++
	}

	return entries, stats, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseFinish(v string) string {
	switch strings.ToLower(v) {
	case FinishFoil:
		return FinishFoil
	case FinishEtched:
		return FinishEtched
	default:
		return FinishNormal
	}
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "true", "yes", "y", "1":
		return true
	default:
		return false
	}
}

// parsePrice returns nil for an empty or unparseable value.
func parsePrice(v string) *float64 {
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(v, "$"))
	if err != nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}
