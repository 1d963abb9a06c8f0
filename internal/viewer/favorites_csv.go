package viewer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ramonehamilton/card-catalog/internal/catalog"
)

// ErrEmptyImport is returned when a favorites CSV has no data rows.
var ErrEmptyImport = errors.New("CSV file is empty or contains no data")

// FavoritesHeader is the column layout of an exported favorites CSV.
var FavoritesHeader = []string{
	"id", "Name", "Set", "Collector Number", "Rarity", "Quantity",
	"Foil", "Etched", "My Price", "Market Price USD",
}

// idColumns are the header names accepted for the card id on import, in
// priority order.
var idColumns = []string{"id", "ID", "Scryfall ID", "ScryfallID"}

// ImportResult summarizes a favorites import.
type ImportResult struct {
	Imported int `json:"imported"`
	Total    int `json:"total"`
	NotFound int `json:"notFound"`
}

// WriteFavoritesCSV writes cards as a favorites CSV, header included.
func WriteFavoritesCSV(w io.Writer, cards []*catalog.Card) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FavoritesHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, c := range cards {
		myPrice := ""
		if c.MyPrice != nil {
			myPrice = strconv.FormatFloat(*c.MyPrice, 'f', 2, 64)
		}
		record := []string{
			c.ID,
			c.Name,
			strings.ToUpper(c.Set),
			c.CollectorNumber,
			c.Rarity,
			strconv.Itoa(c.CurrentQuantity),
			strconv.FormatBool(c.IsFoil),
			strconv.FormatBool(c.IsEtched),
			myPrice,
			strconv.FormatFloat(c.MarketPrice, 'f', 2, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row for %s: %w", c.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadFavoriteIDs reads the id column of a favorites CSV. Rows without an
// id are skipped but still counted in total.
func ReadFavoriteIDs(r io.Reader) (ids []string, total int, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, ErrEmptyImport
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	col := -1
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		for _, name := range idColumns {
			if h == name && (col < 0 || idColumnRank(header[col]) > idColumnRank(h)) {
				col = i
			}
		}
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, total, fmt.Errorf("read row %d: %w", total+2, err)
		}
		if isBlank(record) {
			continue
		}
		total++
		if col < 0 || col >= len(record) {
			continue
		}
		if id := strings.TrimSpace(record[col]); id != "" {
			ids = append(ids, id)
		}
	}

	if total == 0 {
		return nil, 0, ErrEmptyImport
	}
	return ids, total, nil
}

func idColumnRank(h string) int {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	for i, name := range idColumns {
		if h == name {
			return i
		}
	}
	return len(idColumns)
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ExportFavorites writes the favorite cards as CSV and returns how many
// were written.
func (s *Session) ExportFavorites(w io.Writer) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	favs := s.favoriteCards()
	if len(favs) == 0 {
		s.notifier.Info("No favorites to export.")
	}
	if err := WriteFavoritesCSV(w, favs); err != nil {
		return 0, fmt.Errorf("export favorites: %w", err)
	}
	return len(favs), nil
}

// ImportFavorites favorites every card named in a favorites CSV. An id
// matches a card id, or else the first card printed from that Scryfall
// record. Imported cards are un-ignored.
func (s *Session) ImportFavorites(ctx context.Context, r io.Reader) (ImportResult, error) {
	ids, total, err := ReadFavoriteIDs(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import favorites: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return ImportResult{}, ErrNotLoaded
	}

	result := ImportResult{Total: total}
	resolved := make([]string, 0, len(ids))
	for _, id := range ids {
		c := s.resolve(id)
		if c == nil {
			s.log.Warn().Str("id", id).Msg("imported favorite not found in catalog")
			result.NotFound++
			continue
		}
		resolved = append(resolved, c.ID)
	}

	result.Imported, err = s.prefs.AddFavorites(ctx, resolved)
	if err == nil {
		s.notifier.Info(fmt.Sprintf("Imported %d favorites.", result.Imported))
	}
	return result, s.warnPersist(err)
}

func (s *Session) resolve(id string) *catalog.Card {
	if c, ok := s.byID[id]; ok {
		return c
	}
	for _, c := range s.all {
		if c.Scryfall.ID == id {
			return c
		}
	}
	return nil
}
