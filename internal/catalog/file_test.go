package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "cards.json")

	price := 3.0
	cards := []*Card{{
		ID: "x_foil", Name: "X", Set: "M21", Quantity: 2, IsFoil: true,
		MarketPrice: 4, MyPrice: &price, Layout: "normal",
		IsFavorite: true, IsIgnored: true, CurrentQuantity: 9,
	}}
	require.NoError(t, WriteFile(path, cards))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "IsFavorite", "overlay fields are never serialized")
	assert.Contains(t, string(raw), `"collectorNumber"`)
	assert.Contains(t, string(raw), `"myPrice": 3`)

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "x_foil", got[0].ID)
	assert.Equal(t, FinishFoil, got[0].Finish())
	assert.False(t, got[0].IsFavorite)
	assert.Equal(t, 2, got[0].CurrentQuantity)

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	assert.Empty(t, matches)
}

func TestDecode_Defaults(t *testing.T) {
	doc := `[
	  {"id":"a","name":"A","quantity":1,"marketPrice":2.5,"layout":"token","extra":{"ignored":true}},
	  null,
	  {"id":"b","name":"B","set":"LEA","typeLine":"Instant","rarity":"common","isEtched":true}
	]`

	cards, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, cards, 2)

	a := cards[0]
	assert.True(t, a.IsToken, "token derived from layout")
	require.NotNil(t, a.MyPrice)
	assert.Equal(t, 2.5, *a.MyPrice, "myPrice falls back to market price")
	assert.Equal(t, 2.5, a.EffectivePrice())
	assert.NotNil(t, a.Colors)
	assert.NotNil(t, a.ColorIdentity)
	assert.NotNil(t, a.Scryfall.Legalities)
	assert.Equal(t, "", a.ImageURL)

	b := cards[1]
	assert.Equal(t, 0.0, b.MarketPrice)
	assert.Equal(t, "b lea instant common etched", b.SearchableText, "missing search text is derived")
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"not":"an array"}`))
	assert.Error(t, err)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestWriteUnmatched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unmatched.json")

	require.NoError(t, WriteUnmatched(path, []Unmatched{{Reason: "no scryfall match found for key: a:1:en"}}))

	var got []map[string]any
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "no scryfall match found for key: a:1:en", got[0]["reason"])
	assert.Contains(t, got[0], "sourceRow")

	// A clean run removes the stale file.
	require.NoError(t, WriteUnmatched(path, nil))
	assert.NoFileExists(t, path)

	// And tolerates it being absent.
	require.NoError(t, WriteUnmatched(path, nil))
}
