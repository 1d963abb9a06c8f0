package viewer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ramonehamilton/card-catalog/internal/catalog"
	"github.com/ramonehamilton/card-catalog/internal/logger"
	"github.com/ramonehamilton/card-catalog/internal/notify"
	"github.com/ramonehamilton/card-catalog/internal/preferences"
)

// ErrNotLoaded is returned by session operations before a catalog has been
// loaded successfully.
var ErrNotLoaded = errors.New("catalog not loaded")

// User-facing notification texts.
const (
	msgLoadFailed    = "Could not load card data. Build the catalog and restart the viewer."
	msgPrefsReset    = "Some saved preferences were unreadable and have been reset."
	msgPersistFailed = "Your change could not be saved and will be lost when the viewer restarts."
	msgReloadFailed  = "Catalog changed on disk but could not be reloaded; keeping the current cards."
)

// SessionOptions configures a Session.
type SessionOptions struct {
	// CatalogPath is the catalog file produced by the builder.
	CatalogPath string

	// PageSize is the number of cards per batch.
	PageSize int

	// DefaultSort and DefaultCriteria form the view applied after a load.
	DefaultSort     SortKey
	DefaultCriteria Criteria
}

// CardView is a snapshot of a card with its preference overlay, safe to
// hand out of the session lock.
type CardView struct {
	catalog.Card
	IsFavorite      bool `json:"isFavorite"`
	IsIgnored       bool `json:"isIgnored"`
	CurrentQuantity int  `json:"currentQuantity"`
}

func newCardView(c *catalog.Card) CardView {
	return CardView{
		Card:            *c,
		IsFavorite:      c.IsFavorite,
		IsIgnored:       c.IsIgnored,
		CurrentQuantity: c.CurrentQuantity,
	}
}

func newCardViews(cards []*catalog.Card) []CardView {
	views := make([]CardView, len(cards))
	for i, c := range cards {
		views[i] = newCardView(c)
	}
	return views
}

// Page is one batch of the filtered working set.
type Page struct {
	Cards   []CardView `json:"cards"`
	Cursor  int        `json:"cursor"`
	HasMore bool       `json:"hasMore"`
	Total   int        `json:"total"`
}

// Session is the viewer's working set: every catalog card, the current
// filtered and sorted view, and a cursor into it. All card state, overlay
// fields included, is read and written under the session lock.
type Session struct {
	mu       sync.Mutex
	options  SessionOptions
	prefs    *preferences.Store
	notifier *notify.Notifier
	log      *logger.Logger

	loaded   bool
	all      []*catalog.Card
	byID     map[string]*catalog.Card
	filtered []*catalog.Card
	cursor   int
	criteria Criteria
	sortKey  SortKey
}

// NewSession creates an unloaded session. A nil log discards output.
func NewSession(options SessionOptions, prefs *preferences.Store, notifier *notify.Notifier, log *logger.Logger) *Session {
	if options.PageSize <= 0 {
		options.PageSize = DefaultPageSize
	}
	if options.DefaultSort == "" {
		options.DefaultSort = DefaultSortKey
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Session{
		options:  options,
		prefs:    prefs,
		notifier: notifier,
		log:      log,
		criteria: options.DefaultCriteria,
		sortKey:  options.DefaultSort,
	}
}

// Notifier returns the session's notification channel.
func (s *Session) Notifier() *notify.Notifier {
	return s.notifier
}

// Load reads the catalog file and the saved preferences concurrently, then
// applies the default view. A catalog failure leaves the session empty and
// publishes an error notification. Unreadable preferences only warn.
func (s *Session) Load(ctx context.Context) error {
	var (
		cards    []*catalog.Card
		prefsErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cards, err = catalog.ReadFile(s.options.CatalogPath)
		return err
	})
	g.Go(func() error {
		prefsErr = s.prefs.Load(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		s.mu.Lock()
		s.reset()
		s.mu.Unlock()

		s.log.Error().Err(err).Str("path", s.options.CatalogPath).Msg("failed to load catalog")
		s.notifier.Error(msgLoadFailed)
		return fmt.Errorf("load catalog: %w", err)
	}

	if prefsErr != nil {
		s.log.Warn().Err(prefsErr).Msg("preferences reset on load")
		s.notifier.Warn(msgPrefsReset)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.criteria = s.options.DefaultCriteria
	s.sortKey = s.options.DefaultSort
	s.install(cards)

	s.log.Info().
		Int("cards", len(cards)).
		Int("favorites", len(s.prefs.Favorites())).
		Int("ignored", len(s.prefs.Ignored())).
		Msg("catalog loaded")

	return nil
}

// Reload re-reads the catalog file and keeps the active criteria and sort.
// On failure the previous cards stay in place.
func (s *Session) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cards, err := catalog.ReadFile(s.options.CatalogPath)
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.options.CatalogPath).Msg("catalog reload failed")
		s.notifier.Warn(msgReloadFailed)
		return fmt.Errorf("reload catalog: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		// First successful read after a failed Load.
		s.criteria = s.options.DefaultCriteria
		s.sortKey = s.options.DefaultSort
	}
	s.install(cards)
	s.notifier.Info(fmt.Sprintf("Catalog reloaded: %d cards.", len(cards)))
	s.log.Info().Int("cards", len(cards)).Msg("catalog reloaded")

	return nil
}

// install swaps in a new card set. Callers hold s.mu.
func (s *Session) install(cards []*catalog.Card) {
	s.prefs.Attach(cards)

	s.all = cards
	s.byID = make(map[string]*catalog.Card, len(cards))
	for _, c := range cards {
		s.byID[c.ID] = c
	}
	s.loaded = true
	s.refilter()
}

func (s *Session) reset() {
	s.loaded = false
	s.all = nil
	s.byID = nil
	s.filtered = nil
	s.cursor = ResetCursor()
}

func (s *Session) refilter() {
	s.filtered = Filter(s.all, s.criteria)
	Sort(s.filtered, s.sortKey)
	s.cursor = ResetCursor()
}

// Loaded reports whether a catalog is in place.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Len returns the number of catalog cards.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.all)
}

// Apply replaces the working set with the cards matching criteria, ordered
// by key, and resets the cursor. It returns the number of matching cards.
func (s *Session) Apply(criteria Criteria, key SortKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return 0, ErrNotLoaded
	}
	s.criteria = criteria
	s.sortKey = key
	s.refilter()

	return len(s.filtered), nil
}

// QueryResult is the outcome of ApplyFirstPage, taken under one lock.
type QueryResult struct {
	FilteredLen   int
	FilteredCount int
	Page          Page
}

// ApplyFirstPage applies criteria and key like Apply and returns the counts
// and first batch of the new working set, consistent with each other.
func (s *Session) ApplyFirstPage(criteria Criteria, key SortKey) (QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return QueryResult{}, ErrNotLoaded
	}
	s.criteria = criteria
	s.sortKey = key
	s.refilter()

	return QueryResult{
		FilteredLen:   len(s.filtered),
		FilteredCount: s.filteredCount(),
		Page:          s.nextBatch(),
	}, nil
}

// View returns the active criteria and sort key.
func (s *Session) View() (Criteria, SortKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria, s.sortKey
}

// SetFilteredCards replaces the working set with cards, in the given order,
// and resets the cursor.
func (s *Session) SetFilteredCards(cards []*catalog.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filtered = slices.Clone(cards)
	s.cursor = ResetCursor()
}

// NextBatch returns the next page of the working set and advances the
// cursor.
func (s *Session) NextBatch() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextBatch()
}

// nextBatch advances the cursor. Callers hold s.mu.
func (s *Session) nextBatch() Page {
	var page []*catalog.Card
	page, s.cursor = NextPage(s.filtered, s.cursor, s.options.PageSize)

	return Page{
		Cards:   newCardViews(page),
		Cursor:  s.cursor,
		HasMore: HasMore(s.cursor, len(s.filtered)),
		Total:   len(s.filtered),
	}
}

// HasMore reports whether NextBatch would return cards.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return HasMore(s.cursor, len(s.filtered))
}

// FilteredLen returns the number of cards in the working set.
func (s *Session) FilteredLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filtered)
}

// FilteredCount returns the number of physical copies in the working set:
// the sum of current quantities.
func (s *Session) FilteredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filteredCount()
}

func (s *Session) filteredCount() int {
	total := 0
	for _, c := range s.filtered {
		total += c.CurrentQuantity
	}
	return total
}

// Counts returns FilteredLen and FilteredCount taken together. It fails
// with ErrNotLoaded before a catalog is in place.
func (s *Session) Counts() (cards, copies int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return 0, 0, ErrNotLoaded
	}
	return len(s.filtered), s.filteredCount(), nil
}

// Card returns a snapshot of the card with the given id.
func (s *Session) Card(id string) (CardView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return CardView{}, false
	}
	return newCardView(c), true
}

// Favorites returns the favorite cards in catalog order.
func (s *Session) Favorites() []CardView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newCardViews(s.favoriteCards())
}

func (s *Session) favoriteCards() []*catalog.Card {
	var favs []*catalog.Card
	for _, c := range s.all {
		if c.IsFavorite {
			favs = append(favs, c)
		}
	}
	return favs
}

// IsFavorite reports whether id is a favorite.
func (s *Session) IsFavorite(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.IsFavorite(id)
}

// IsIgnored reports whether id is ignored.
func (s *Session) IsIgnored(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.IsIgnored(id)
}

// GetQuantity returns the current quantity of id.
func (s *Session) GetQuantity(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.GetQuantity(id)
}

// ToggleFavorite flips the favorite state of id and returns the new state.
// A persistence failure is returned alongside the applied state.
func (s *Session) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.known(id); err != nil {
		return false, err
	}
	fav, err := s.prefs.ToggleFavorite(ctx, id)
	return fav, s.warnPersist(err)
}

// AddIgnored ignores id and reports whether it was newly ignored.
func (s *Session) AddIgnored(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.known(id); err != nil {
		return false, err
	}
	added, err := s.prefs.AddIgnored(ctx, id)
	return added, s.warnPersist(err)
}

// RemoveIgnored un-ignores id and reports whether it was ignored.
func (s *Session) RemoveIgnored(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.known(id); err != nil {
		return false, err
	}
	removed, err := s.prefs.RemoveIgnored(ctx, id)
	return removed, s.warnPersist(err)
}

// SetQuantity sets the current quantity of id and returns the stored value.
func (s *Session) SetQuantity(ctx context.Context, id string, n float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.known(id); err != nil {
		return 0, err
	}
	q, err := s.prefs.SetQuantity(ctx, id, n)
	return q, s.warnPersist(err)
}

// ClearFavorites removes every favorite and returns how many there were.
func (s *Session) ClearFavorites(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.prefs.ClearFavorites(ctx)
	if err == nil && n > 0 {
		s.notifier.Info(fmt.Sprintf("Cleared %d favorites.", n))
	}
	return n, s.warnPersist(err)
}

// ClearIgnored removes every ignored card and returns how many there were.
func (s *Session) ClearIgnored(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.prefs.ClearIgnored(ctx)
	if err == nil && n > 0 {
		s.notifier.Info(fmt.Sprintf("Restored %d ignored cards.", n))
	}
	return n, s.warnPersist(err)
}

func (s *Session) known(id string) error {
	if !s.loaded {
		return ErrNotLoaded
	}
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("%w: %s", preferences.ErrUnknownCard, id)
	}
	return nil
}

// warnPersist publishes a warning for persistence failures. The in-memory
// change has already been applied.
func (s *Session) warnPersist(err error) error {
	if preferences.IsPersistError(err) {
		s.notifier.Warn(msgPersistFailed)
	}
	return err
}
