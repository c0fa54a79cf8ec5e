package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/diagnosis/van-reservations/pkg/middleware"
)

type RouteOptions struct {
	// BookingLimiter throttles booking creation. Optional.
	BookingLimiter func(http.Handler) http.Handler
	// UploadDir is served under /uploads when set.
	UploadDir string
	// StaticDir holds the single page app when set.
	StaticDir string
}

// Mount registers every route on r.
func (h *Handlers) Mount(r chi.Router, opts RouteOptions) {
	r.Get("/health", h.Health)
	r.Get("/health/simple", h.HealthSimple)

	r.Route("/api", func(r chi.Router) {
		r.Use(mw.NoStore)
		r.NotFound(APINotFound)

		r.Get("/config", h.Config)
		r.Get("/availability", h.Availability)
		r.Get("/photos", h.ListPhotos)

		booking := []func(http.Handler) http.Handler{h.RequireUser}
		if opts.BookingLimiter != nil {
			booking = append([]func(http.Handler) http.Handler{opts.BookingLimiter}, booking...)
		}
		r.With(booking...).Post("/bookings", h.CreateBooking)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireUser, h.RequireAdmin)
			r.Get("/bookings", h.ListBookings)
			r.Post("/blocked-slots", h.CreateBlockedSlot)
			r.Post("/photos", h.UploadPhoto)
			r.Delete("/photos/{id}", h.DeletePhoto)
		})
	})

	if opts.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", noListing(http.FileServer(http.Dir(opts.UploadDir)))))
	}
	if opts.StaticDir != "" {
		r.NotFound(h.SPA(opts.StaticDir))
	}
}
