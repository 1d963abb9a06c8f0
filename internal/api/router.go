package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/card-catalog/internal/api/handlers"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	systemHandler := handlers.NewSystemHandler(s.session)
	cardHandler := handlers.NewCardHandler(s.session)
	favoritesHandler := handlers.NewFavoritesHandler(s.session)
	notificationHandler := handlers.NewNotificationHandler(s.session.Notifier())

	// Health check endpoint (no versioning)
	s.router.Get("/health", systemHandler.Health)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Card routes
		r.Route("/cards", func(r chi.Router) {
			r.Use(jsonContentTypeMiddleware)
			r.Post("/query", cardHandler.Query) // POST for complex filters
			r.Get("/next", cardHandler.Next)
			r.Get("/count", cardHandler.Count)
			r.Get("/{cardID}", cardHandler.GetCard)
			r.Post("/{cardID}/favorite", cardHandler.ToggleFavorite)
			r.Put("/{cardID}/ignored", cardHandler.AddIgnored)
			r.Delete("/{cardID}/ignored", cardHandler.RemoveIgnored)
			r.Put("/{cardID}/quantity", cardHandler.SetQuantity)
		})

		// Favorites routes; import takes a CSV body
		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", favoritesHandler.List)
			r.Delete("/", favoritesHandler.Clear)
			r.Get("/export", favoritesHandler.Export)
			r.Post("/import", favoritesHandler.Import)
		})

		r.Delete("/ignored", favoritesHandler.ClearIgnored)

		// Notification routes
		r.Get("/notifications", notificationHandler.Current)
		r.Delete("/notifications", notificationHandler.Dismiss)
	})
}
