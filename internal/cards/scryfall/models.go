package scryfall

import (
	"errors"
	"fmt"
	"time"
)

// Card represents a single card printing from Scryfall.
// Only the fields the catalog builder consumes are decoded; everything else in
// the bulk document is ignored.
type Card struct {
	// Core fields
	ID       string `json:"id"`
	OracleID string `json:"oracle_id"`

	// Card details
	Name          string     `json:"name"`
	Lang          string     `json:"lang"`
	Layout        string     `json:"layout"`
	ImageURIs     *ImageURIs `json:"image_uris,omitempty"`
	ManaCost      string     `json:"mana_cost,omitempty"`
	CMC           float64    `json:"cmc"`
	TypeLine      string     `json:"type_line"`
	OracleText    string     `json:"oracle_text,omitempty"`
	Colors        []string   `json:"colors,omitempty"`
	ColorIdentity []string   `json:"color_identity"`
	Keywords      []string   `json:"keywords,omitempty"`

	// Print details
	SetCode         string `json:"set"`
	SetName         string `json:"set_name"`
	CollectorNumber string `json:"collector_number"`
	Rarity          string `json:"rarity"`
	Promo           bool   `json:"promo"`
	Reprint         bool   `json:"reprint"`
	Variation       bool   `json:"variation"`

	// Card faces (for DFCs, MDFCs, split cards)
	CardFaces []CardFace `json:"card_faces,omitempty"`

	// Legality, keyed by format name ("standard", "modern", ...).
	Legalities map[string]string `json:"legalities"`

	Prices Prices `json:"prices"`
}

// CardFace represents one face of a multi-faced card.
type CardFace struct {
	Name       string     `json:"name"`
	ManaCost   string     `json:"mana_cost,omitempty"`
	TypeLine   string     `json:"type_line"`
	OracleText string     `json:"oracle_text,omitempty"`
	Colors     []string   `json:"colors,omitempty"`
	ImageURIs  *ImageURIs `json:"image_uris,omitempty"`
}

// ImageURIs contains URLs for card images in various sizes.
type ImageURIs struct {
	Small      string `json:"small"`
	Normal     string `json:"normal"`
	Large      string `json:"large"`
	PNG        string `json:"png"`
	ArtCrop    string `json:"art_crop"`
	BorderCrop string `json:"border_crop"`
}

// Prices holds the market prices Scryfall reports for a printing. Scryfall
// sends prices as decimal strings and uses null for unknown values.
type Prices struct {
	USD       *string `json:"usd,omitempty"`
	USDFoil   *string `json:"usd_foil,omitempty"`
	USDEtched *string `json:"usd_etched,omitempty"`
	EUR       *string `json:"eur,omitempty"`
	EURFoil   *string `json:"eur_foil,omitempty"`
	TIX       *string `json:"tix,omitempty"`
}

// HasUSD reports whether any USD price (normal, foil or etched) is present.
func (p Prices) HasUSD() bool {
	return p.USD != nil || p.USDFoil != nil || p.USDEtched != nil
}

// BulkData describes a bulk data file download.
type BulkData struct {
	ID              string    `json:"id"`
	Object          string    `json:"object"`
	Type            string    `json:"type"`
	UpdatedAt       time.Time `json:"updated_at"`
	URI             string    `json:"uri"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Size            int64     `json:"size"`
	DownloadURI     string    `json:"download_uri"`
	ContentType     string    `json:"content_type"`
	ContentEncoding string    `json:"content_encoding"`
}

// BulkDataList represents the list of bulk data files.
type BulkDataList struct {
	Object  string     `json:"object"`
	HasMore bool       `json:"has_more"`
	Data    []BulkData `json:"data"`
}

// APIError represents an error response from the Scryfall API.
type APIError struct {
	Object   string   `json:"object"`
	Code     string   `json:"code"`
	Status   int      `json:"status"`
	Details  string   `json:"details"`
	Type     string   `json:"type,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("Scryfall API error (HTTP %d): %s", e.Status, e.Details)
	}
	return fmt.Sprintf("Scryfall API error (HTTP %d): %s", e.Status, e.Code)
}

// NotFoundError represents a 404 error from the API.
type NotFoundError struct {
	URL string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.URL)
}

// IsNotFound returns true if err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
