package importer

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ramonehamilton/card-catalog/internal/cards/scryfall"
)

// ErrBadBulkFormat is returned when the bulk document is not a JSON array of
// card objects.
var ErrBadBulkFormat = errors.New("bulk document is not a JSON array of card objects")

// ctxCheckInterval is how many records are decoded between context checks.
const ctxCheckInterval = 1000

// DecodeBulk streams a bulk document and calls fn once per card record, in
// document order. It returns the number of records decoded. A null element
// is skipped; any other non-object element is a format error.
func DecodeBulk(ctx context.Context, r io.Reader, fn func(*scryfall.Card) error) (int, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadBulkFormat, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return 0, fmt.Errorf("%w: document starts with %v", ErrBadBulkFormat, tok)
	}

	processed := 0
	for dec.More() {
		if processed%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return processed, err
			}
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return processed, fmt.Errorf("%w: record %d: %v", ErrBadBulkFormat, processed+1, err)
		}
		if string(raw) == "null" {
			continue
		}
		if len(raw) == 0 || raw[0] != '{' {
			return processed, fmt.Errorf("%w: record %d is not an object", ErrBadBulkFormat, processed+1)
		}

		var card scryfall.Card
		if err := json.Unmarshal(raw, &card); err != nil {
			return processed, fmt.Errorf("%w: record %d: %v", ErrBadBulkFormat, processed+1, err)
		}
		processed++

		if err := fn(&card); err != nil {
			return processed, err
		}
	}

	if _, err := dec.Token(); err != nil {
		return processed, fmt.Errorf("%w: %v", ErrBadBulkFormat, err)
	}

	return processed, nil
}

// ReadBulkFile opens a bulk file, transparently un-gzipping it, and streams
// it through DecodeBulk.
func ReadBulkFile(ctx context.Context, path string, fn func(*scryfall.Card) error) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	br := bufio.NewReaderSize(file, 256*1024)
	var r io.Reader = br

	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gzReader, err := gzip.NewReader(br)
		if err != nil {
			return 0, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		r = gzReader
	}

	return DecodeBulk(ctx, r, fn)
}
