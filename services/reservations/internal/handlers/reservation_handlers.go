package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diagnosis/van-reservations/internal/http/response"
	"github.com/diagnosis/van-reservations/services/reservations/internal/domain"
)

const maxDaysWindow = 366 * 24 * time.Hour

// Availability serves GET /api/availability?start=&end=[&days=true].
func (h *Handlers) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end := strings.TrimSpace(q.Get("start")), strings.TrimSpace(q.Get("end"))

	var missing []string
	if start == "" {
		missing = append(missing, "start")
	}
	if end == "" {
		missing = append(missing, "end")
	}
	if len(missing) > 0 {
		response.MissingFields(w, "Start en einddatum zijn verplicht", missing)
		return
	}

	loc := h.reservations.Location()
	window, err := domain.ParseInterval(start, end, loc)
	if err != nil {
		writeServiceError(w, r, err, "Fout bij ophalen beschikbaarheid")
		return
	}

	summary, err := h.reservations.Availability(r.Context(), window)
	if err != nil {
		writeServiceError(w, r, err, "Fout bij ophalen beschikbaarheid")
		return
	}

	out := domain.ToAvailabilityDTO(*summary)
	if days, _ := strconv.ParseBool(q.Get("days")); days {
		if window.End.Sub(window.Start) > maxDaysWindow {
			response.BadRequest(w, "Periode te lang voor een dagoverzicht")
			return
		}
		out.Days = domain.ReduceDays(*summary, window.Start, window.End, loc)
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateBooking serves POST /api/bookings.
func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req domain.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	booking, replayed, err := h.reservations.CreateBooking(r.Context(), req, key)
	if err != nil {
		writeServiceError(w, r, err, "Fout bij aanmaken reservering")
		return
	}

	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Reservering succesvol aangemaakt",
		"booking": domain.ToBookingDTO(*booking),
	})
}

// CreateBlockedSlot serves POST /api/admin/blocked-slots.
func (h *Handlers) CreateBlockedSlot(w http.ResponseWriter, r *http.Request) {
	var req domain.BlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	identity, _ := IdentityFrom(r.Context())
	var createdBy string
	if identity != nil {
		createdBy = identity.Email
	}

	block, err := h.reservations.CreateBlock(r.Context(), req, createdBy)
	if err != nil {
		writeServiceError(w, r, err, "Fout bij blokkeren periode")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":      "Periode succesvol geblokkeerd",
		"blocked_slot": domain.ToBlockedSlotDTO(*block),
	})
}

// ListBookings serves GET /api/admin/bookings.
func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.reservations.ListBookings(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Fout bij ophalen reserveringen")
		return
	}
	writeJSON(w, http.StatusOK, domain.ToBookingDTOs(bookings))
}
