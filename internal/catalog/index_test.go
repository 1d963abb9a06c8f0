package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/card-catalog/internal/cards/scryfall"
	"github.com/ramonehamilton/card-catalog/internal/collection"
)

func ref(id, set, cn, lang string) *scryfall.Card {
	return &scryfall.Card{ID: id, SetCode: set, CollectorNumber: cn, Lang: lang}
}

func TestBuildIndex(t *testing.T) {
	ix := BuildIndex([]*scryfall.Card{
		ref("a", "MH2", "221", "en"),
		ref("b", "mh2", "221", "ja"),
		ref("c", "", "1", "en"),
		ref("d", "mh2", "", "en"),
		nil,
	})

	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, 2, ix.Records())
	assert.Equal(t, 3, ix.Skipped())

	c, ok := ix.Lookup("mh2:221:en")
	require.True(t, ok)
	assert.Equal(t, "a", c.ID)

	c, ok = ix.Lookup("mh2:221:ja")
	require.True(t, ok)
	assert.Equal(t, "b", c.ID)
}

func TestIndex_NormalizedKeyIsLastWriteWins(t *testing.T) {
	ix := BuildIndex([]*scryfall.Card{
		ref("first", "sld", "12", "en"),
		ref("second", "sld", "12", "en"),
	})

	c, ok := ix.Lookup("sld:12:en")
	require.True(t, ok)
	assert.Equal(t, "second", c.ID)
}

func TestIndex_RawMarkerKeyOnlyWhenFree(t *testing.T) {
	ix := BuildIndex([]*scryfall.Card{
		ref("star-a", "war", "1-★", "en"),
		ref("star-b", "war", "1-★", "en"),
	})

	// Normalized key is last-write-wins.
	c, ok := ix.Lookup("war:1★:en")
	require.True(t, ok)
	assert.Equal(t, "star-b", c.ID)

	// Raw key keeps the first record.
	c, ok = ix.Lookup("war:1-★:en")
	require.True(t, ok)
	assert.Equal(t, "star-a", c.ID)

	assert.Equal(t, 2, ix.Len())
}

func TestIndex_NoRawKeyWithoutMarker(t *testing.T) {
	ix := BuildIndex([]*scryfall.Card{ref("x", "plst", "ARB-1", "en")})

	assert.Equal(t, 1, ix.Len())
	_, ok := ix.Lookup("plst:arb1:en")
	assert.True(t, ok)
}

func TestMatch(t *testing.T) {
	ix := BuildIndex([]*scryfall.Card{
		ref("mh2", "mh2", "221", "en"),
		ref("star", "war", "1-★", "en"),
	})

	t.Run("exact triple", func(t *testing.T) {
		c, key, ok := ix.Match(collection.Entry{SetCode: "MH2", CollectorNumber: "221", Language: "en"})
		require.True(t, ok)
		assert.Equal(t, "mh2", c.ID)
		assert.Equal(t, "mh2:221:en", key)
	})

	t.Run("language defaults to en", func(t *testing.T) {
		_, _, ok := ix.Match(collection.Entry{SetCode: "mh2", CollectorNumber: "221"})
		assert.True(t, ok)
	})

	t.Run("normalized collector number", func(t *testing.T) {
		_, _, ok := ix.Match(collection.Entry{SetCode: "war", CollectorNumber: "1★", Language: "en"})
		assert.True(t, ok)
	})

	t.Run("raw marker fallback", func(t *testing.T) {
		// Normalized form "1★" is found first here too; the raw key is exercised
		// by an index that only has the raw variant.
		only := NewIndex()
		only.byKey[Key("war", "1-★", "en")] = ref("raw", "war", "1-★", "en")

		c, key, ok := only.Match(collection.Entry{SetCode: "WAR", CollectorNumber: "1-★", Language: "en"})
		require.True(t, ok)
		assert.Equal(t, "raw", c.ID)
		assert.Equal(t, "war:1★:en", key)
	})

	t.Run("miss", func(t *testing.T) {
		c, key, ok := ix.Match(collection.Entry{SetCode: "MH2", CollectorNumber: "999", Language: "en"})
		assert.False(t, ok)
		assert.Nil(t, c)
		assert.Equal(t, "mh2:999:en", key)
		assert.Equal(t, "no scryfall match found for key: mh2:999:en", UnmatchedReason(key))
	})

	t.Run("language mismatch", func(t *testing.T) {
		_, _, ok := ix.Match(collection.Entry{SetCode: "MH2", CollectorNumber: "221", Language: "de"})
		assert.False(t, ok)
	})
}
