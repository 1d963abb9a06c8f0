package viewer

import "github.com/ramonehamilton/card-catalog/internal/catalog"

const (
	// DefaultPageSize is the number of cards delivered per batch.
	DefaultPageSize = 20

	// MaxPageSize bounds a configured batch size.
	MaxPageSize = 1000
)

// NextPage returns up to size cards starting at cursor, and the advanced
// cursor. The cursor is clamped into [0, len(cards)]; past the end the page
// is empty and the cursor unchanged. A non-positive size uses
// DefaultPageSize.
func NextPage(cards []*catalog.Card, cursor, size int) ([]*catalog.Card, int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	cursor = min(max(cursor, 0), len(cards))
	// size may be close to MaxInt; never add it to cursor unclamped.
	end := cursor + min(size, len(cards)-cursor)
	return cards[cursor:end:end], end
}

// HasMore reports whether cards remain after cursor.
func HasMore(cursor, total int) bool {
	return cursor < total
}

// ResetCursor returns the cursor position of a fresh working set.
func ResetCursor() int {
	return 0
}
