package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/card-catalog/internal/api/response"
	"github.com/ramonehamilton/card-catalog/internal/viewer"
)

// CardHandler serves the filtered card view and per-card preferences.
type CardHandler struct {
	session *viewer.Session
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(session *viewer.Session) *CardHandler {
	return &CardHandler{session: session}
}

// QueryRequest is the body of a card query: the filter criteria plus the
// sort key.
type QueryRequest struct {
	viewer.Criteria
	Sort string `json:"sort"`
}

// QueryResponse is the first page of a freshly applied view.
type QueryResponse struct {
	FilteredLen   int         `json:"filteredLen"`
	FilteredCount int         `json:"filteredCount"`
	Sort          string      `json:"sort"`
	Page          viewer.Page `json:"page"`
}

// CountResponse reports the size of the current view.
type CountResponse struct {
	FilteredLen   int `json:"filteredLen"`
	FilteredCount int `json:"filteredCount"`
}

// Query applies new criteria and sort, and returns the first page.
func (h *CardHandler) Query(w http.ResponseWriter, r *http.Request) {
	// An empty body clears every filter.
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	key, err := viewer.ParseSortKey(req.Sort)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	res, err := h.session.ApplyFirstPage(req.Criteria, key)
	if err != nil {
		respond(w, r, nil, err)
		return
	}

	response.Success(w, QueryResponse{
		FilteredLen:   res.FilteredLen,
		FilteredCount: res.FilteredCount,
		Sort:          string(key),
		Page:          res.Page,
	})
}

// Next returns the next page of the current view.
func (h *CardHandler) Next(w http.ResponseWriter, r *http.Request) {
	if !h.session.Loaded() {
		respond(w, r, nil, viewer.ErrNotLoaded)
		return
	}
	response.Success(w, h.session.NextBatch())
}

// Count returns the number of cards and copies in the current view.
func (h *CardHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, copies, err := h.session.Counts()
	respond(w, r, CountResponse{FilteredLen: n, FilteredCount: copies}, err)
}

// GetCard returns a single card.
func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cardID")
	card, ok := h.session.Card(id)
	if !ok {
		response.NotFound(w, fmt.Errorf("card not found: %s", id))
		return
	}
	response.Success(w, card)
}

// FavoriteResponse reports a card's favorite state.
type FavoriteResponse struct {
	ID         string `json:"id"`
	IsFavorite bool   `json:"isFavorite"`
}

// ToggleFavorite flips a card's favorite state.
func (h *CardHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cardID")
	fav, err := h.session.ToggleFavorite(r.Context(), id)
	respond(w, r, FavoriteResponse{ID: id, IsFavorite: fav}, err)
}

// IgnoredResponse reports a card's ignored state and whether it changed.
type IgnoredResponse struct {
	ID        string `json:"id"`
	IsIgnored bool   `json:"isIgnored"`
	Changed   bool   `json:"changed"`
}

// AddIgnored hides a card from views that hide ignored cards.
func (h *CardHandler) AddIgnored(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cardID")
	changed, err := h.session.AddIgnored(r.Context(), id)
	respond(w, r, IgnoredResponse{ID: id, IsIgnored: true, Changed: changed}, err)
}

// RemoveIgnored restores an ignored card.
func (h *CardHandler) RemoveIgnored(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cardID")
	changed, err := h.session.RemoveIgnored(r.Context(), id)
	respond(w, r, IgnoredResponse{ID: id, IsIgnored: false, Changed: changed}, err)
}

// QuantityRequest is the body of a quantity update.
type QuantityRequest struct {
	Quantity *float64 `json:"quantity"`
}

// QuantityResponse reports the stored quantity.
type QuantityResponse struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// SetQuantity overrides how many copies of a card the user has.
func (h *CardHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cardID")

	var req QuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Quantity == nil {
		response.BadRequest(w, errors.New("quantity is required"))
		return
	}

	q, err := h.session.SetQuantity(r.Context(), id, *req.Quantity)
	respond(w, r, QuantityResponse{ID: id, Quantity: q}, err)
}
