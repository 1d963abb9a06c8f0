// Package preferences keeps the user's favorites, ignored cards and quantity
// overrides, and persists every change through a key/value Persistence.
package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/ramonehamilton/card-catalog/internal/catalog"
	"github.com/ramonehamilton/card-catalog/internal/logger"
)

// Persisted slot keys.
const (
	KeyFavorites  = "favorites"
	KeyIgnored    = "ignored"
	KeyQuantities = "quantities"
)

// maxQuantity bounds quantity overrides.
const maxQuantity = math.MaxInt32

// ErrUnknownCard is returned for card ids that are not in the catalog.
var ErrUnknownCard = errors.New("unknown card")

// Persistence is a key/value store for the preference slots.
type Persistence interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// PersistError reports a slot that could not be read or written. It is a
// warning: the in-memory state stays authoritative.
type PersistError struct {
	Key string
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("preferences: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// IsPersistError reports whether err carries a *PersistError.
func IsPersistError(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}

// Store holds the three preference sets and the overlay fields of the
// attached catalog cards. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	persist    Persistence
	log        *logger.Logger
	favorites  map[string]struct{}
	ignored    map[string]struct{}
	quantities map[string]int
	cards      map[string]*catalog.Card

	// dirty marks slots whose last write failed.
	dirty map[string]bool
}

// NewStore creates an empty store. A nil log discards output.
func NewStore(persist Persistence, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		persist:    persist,
		log:        log,
		favorites:  map[string]struct{}{},
		ignored:    map[string]struct{}{},
		quantities: map[string]int{},
		cards:      map[string]*catalog.Card{},
		dirty:      map[string]bool{},
	}
}

// Load reads the three slots. Absent slots are empty. A slot that cannot be
// read or decoded is reset to empty (and deleted when corrupt); the returned
// error then joins one *PersistError per slot and is a warning only.
func (s *Store) Load(ctx context.Context) error {
	favorites, favErr := loadSet(ctx, s.persist, KeyFavorites)
	ignored, ignErr := loadSet(ctx, s.persist, KeyIgnored)
	quantities, qtyErr := loadQuantities(ctx, s.persist)

	err := errors.Join(favErr, ignErr, qtyErr)
	if err != nil {
		s.log.Warn().Err(err).Msg("preferences reset to defaults")
	}

	for id := range favorites {
		if _, both := ignored[id]; both {
			delete(ignored, id)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.favorites = favorites
	s.ignored = ignored
	s.quantities = quantities
	s.dirty = map[string]bool{}
	for _, c := range s.cards {
		s.overlay(c)
	}

	s.log.Debug().
		Int("favorites", len(favorites)).
		Int("ignored", len(ignored)).
		Int("quantities", len(quantities)).
		Msg("preferences loaded")

	return err
}

func loadSet(ctx context.Context, p Persistence, key string) (map[string]struct{}, error) {
	set := map[string]struct{}{}

	raw, ok, err := p.Get(ctx, key)
	if err != nil {
		return set, &PersistError{Key: key, Op: "read", Err: err}
	}
	if !ok || len(raw) == 0 {
		return set, nil
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return set, discard(ctx, p, key, err)
	}
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set, nil
}

func loadQuantities(ctx context.Context, p Persistence) (map[string]int, error) {
	q := map[string]int{}

	raw, ok, err := p.Get(ctx, KeyQuantities)
	if err != nil {
		return q, &PersistError{Key: KeyQuantities, Op: "read", Err: err}
	}
	if !ok || len(raw) == 0 {
		return q, nil
	}

	var stored map[string]float64
	if err := json.Unmarshal(raw, &stored); err != nil {
		return q, discard(ctx, p, KeyQuantities, err)
	}
	for id, n := range stored {
		q[id] = clamp(n)
	}
	return q, nil
}

// discard deletes a corrupt slot so the next load starts clean.
func discard(ctx context.Context, p Persistence, key string, cause error) error {
	err := &PersistError{Key: key, Op: "decode", Err: cause}
	if delErr := p.Delete(ctx, key); delErr != nil {
		return errors.Join(err, &PersistError{Key: key, Op: "delete", Err: delErr})
	}
	return err
}

// Attach registers the catalog cards and sets their overlay fields. Cards
// attached earlier are forgotten.
func (s *Store) Attach(cards []*catalog.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cards = make(map[string]*catalog.Card, len(cards))
	for _, c := range cards {
		s.cards[c.ID] = c
		s.overlay(c)
	}
}

func (s *Store) overlay(c *catalog.Card) {
	_, c.IsFavorite = s.favorites[c.ID]
	_, c.IsIgnored = s.ignored[c.ID]
	if q, ok := s.quantities[c.ID]; ok {
		c.CurrentQuantity = q
	} else {
		c.CurrentQuantity = c.Quantity
	}
}

func (s *Store) refresh(id string) {
	if c, ok := s.cards[id]; ok {
		s.overlay(c)
	}
}

// IsFavorite reports whether id is a favorite.
func (s *Store) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.favorites[id]
	return ok
}

// IsIgnored reports whether id is ignored.
func (s *Store) IsIgnored(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ignored[id]
	return ok
}

// ToggleFavorite flips the favorite state of id and returns the new state.
// Favoriting an ignored card un-ignores it.
func (s *Store) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, fav := s.favorites[id]; fav {
		delete(s.favorites, id)
		s.refresh(id)
		return false, s.saveSet(ctx, KeyFavorites, s.favorites)
	}

	s.favorites[id] = struct{}{}
	var errs []error
	if _, ign := s.ignored[id]; ign {
		delete(s.ignored, id)
		errs = append(errs, s.saveSet(ctx, KeyIgnored, s.ignored))
	}
	errs = append(errs, s.saveSet(ctx, KeyFavorites, s.favorites))
	s.refresh(id)

	return true, errors.Join(errs...)
}

// AddIgnored ignores id, un-favoriting it. It reports whether id was newly
// added.
func (s *Store) AddIgnored(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ign := s.ignored[id]; ign {
		return false, s.flush(ctx, KeyIgnored)
	}

	s.ignored[id] = struct{}{}
	var errs []error
	if _, fav := s.favorites[id]; fav {
		delete(s.favorites, id)
		errs = append(errs, s.saveSet(ctx, KeyFavorites, s.favorites))
	}
	errs = append(errs, s.saveSet(ctx, KeyIgnored, s.ignored))
	s.refresh(id)

	return true, errors.Join(errs...)
}

// RemoveIgnored un-ignores id and reports whether it was ignored.
func (s *Store) RemoveIgnored(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ign := s.ignored[id]; !ign {
		return false, s.flush(ctx, KeyIgnored)
	}
	delete(s.ignored, id)
	s.refresh(id)

	return true, s.saveSet(ctx, KeyIgnored, s.ignored)
}

// GetQuantity returns the override for id, or the card's owned quantity.
// Unknown cards without an override have quantity 0.
func (s *Store) GetQuantity(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if q, ok := s.quantities[id]; ok {
		return q
	}
	if c, ok := s.cards[id]; ok {
		return c.Quantity
	}
	return 0
}

// SetQuantity sets the current quantity of id to max(0, floor(n)) and returns
// it. An override equal to the owned quantity is removed instead of stored.
func (s *Store) SetQuantity(ctx context.Context, id string, n float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cards[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCard, id)
	}

	q := clamp(n)
	prev, had := s.quantities[id]
	if q == c.Quantity {
		if !had {
			return q, s.flush(ctx, KeyQuantities)
		}
		delete(s.quantities, id)
	} else {
		if had && prev == q {
			return q, s.flush(ctx, KeyQuantities)
		}
		s.quantities[id] = q
	}
	s.refresh(id)

	return q, s.saveQuantities(ctx)
}

// HasOverride reports whether a quantity override is stored for id.
func (s *Store) HasOverride(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.quantities[id]
	return ok
}

// Favorites returns the favorite ids in sorted order.
func (s *Store) Favorites() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.favorites)
}

// Ignored returns the ignored ids in sorted order.
func (s *Store) Ignored() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.ignored)
}

// AddFavorites favorites every id not yet a favorite, un-ignoring them, and
// returns how many were added. Slots are written once.
func (s *Store) AddFavorites(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added, unignored := 0, false
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, fav := s.favorites[id]; fav {
			continue
		}
		s.favorites[id] = struct{}{}
		if _, ign := s.ignored[id]; ign {
			delete(s.ignored, id)
			unignored = true
		}
		s.refresh(id)
		added++
	}
	if added == 0 {
		return 0, errors.Join(s.flush(ctx, KeyIgnored), s.flush(ctx, KeyFavorites))
	}

	var errs []error
	if unignored {
		errs = append(errs, s.saveSet(ctx, KeyIgnored, s.ignored))
	}
	errs = append(errs, s.saveSet(ctx, KeyFavorites, s.favorites))
	return added, errors.Join(errs...)
}

// ClearFavorites removes every favorite and returns how many there were.
func (s *Store) ClearFavorites(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.favorites)
	cleared := s.favorites
	s.favorites = map[string]struct{}{}
	for id := range cleared {
		s.refresh(id)
	}
	return n, s.saveSet(ctx, KeyFavorites, s.favorites)
}

// ClearIgnored removes every ignored id and returns how many there were.
func (s *Store) ClearIgnored(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.ignored)
	cleared := s.ignored
	s.ignored = map[string]struct{}{}
	for id := range cleared {
		s.refresh(id)
	}
	return n, s.saveSet(ctx, KeyIgnored, s.ignored)
}

// flush rewrites key when its last write failed, so repeating an action
// retries the unsaved state. Callers hold s.mu.
func (s *Store) flush(ctx context.Context, key string) error {
	if !s.dirty[key] {
		return nil
	}
	switch key {
	case KeyQuantities:
		return s.saveQuantities(ctx)
	case KeyFavorites:
		return s.saveSet(ctx, key, s.favorites)
	default:
		return s.saveSet(ctx, key, s.ignored)
	}
}

// Dirty reports whether key holds changes that could not be persisted.
func (s *Store) Dirty(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty[key]
}

func (s *Store) saveSet(ctx context.Context, key string, set map[string]struct{}) error {
	data, err := json.Marshal(sortedKeys(set))
	if err != nil {
		return &PersistError{Key: key, Op: "encode", Err: err}
	}
	return s.write(ctx, key, data)
}

func (s *Store) saveQuantities(ctx context.Context) error {
	data, err := json.Marshal(s.quantities)
	if err != nil {
		return &PersistError{Key: KeyQuantities, Op: "encode", Err: err}
	}
	return s.write(ctx, KeyQuantities, data)
}

func (s *Store) write(ctx context.Context, key string, data []byte) error {
	if err := s.persist.Set(ctx, key, data); err != nil {
		s.dirty[key] = true
		s.log.Warn().Err(err).Str("key", key).Msg("failed to persist preferences")
		return &PersistError{Key: key, Op: "write", Err: err}
	}
	delete(s.dirty, key)
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := slices.Sorted(maps.Keys(set))
	if keys == nil {
		return []string{}
	}
	return keys
}

// clamp returns max(0, floor(n)), bounded to maxQuantity.
func clamp(n float64) int {
	if math.IsNaN(n) || n <= 0 {
		return 0
	}
	return int(math.Floor(min(n, maxQuantity)))
}
