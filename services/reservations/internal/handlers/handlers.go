package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/diagnosis/van-reservations/internal/http/response"
	"github.com/diagnosis/van-reservations/pkg/auth"
	"github.com/diagnosis/van-reservations/pkg/logger"
	"github.com/diagnosis/van-reservations/services/reservations/internal/domain"
	"github.com/diagnosis/van-reservations/services/reservations/internal/service"
)

// TokenVerifier is satisfied by *auth.Verifier.
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// HealthCheck is one dependency pinged by /health.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// FrontendConfig is what the single page app needs to sign users in.
type FrontendConfig struct {
	ClientID    string
	AdminEmails []string
}

type Handlers struct {
	reservations service.ReservationService
	photos       service.PhotoService
	verifier     TokenVerifier
	frontend     FrontendConfig
	checks       []HealthCheck
	started      time.Time
}

func New(
	reservations service.ReservationService,
	photos service.PhotoService,
	verifier TokenVerifier,
	frontend FrontendConfig,
	checks ...HealthCheck,
) *Handlers {
	return &Handlers{
		reservations: reservations,
		photos:       photos,
		verifier:     verifier,
		frontend:     frontend,
		checks:       checks,
		started:      time.Now(),
	}
}

type identityKey struct{}

// IdentityFrom returns the caller set by RequireUser.
func IdentityFrom(ctx context.Context) (*auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*auth.Identity)
	return id, ok
}

// RequireUser admits requests carrying a valid Entra bearer token.
func (h *Handlers) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			response.Unauthorized(w, "Geen authenticatie token gevonden")
			return
		}

		identity, err := h.verifier.Verify(token)
		switch {
		case errors.Is(err, auth.ErrTenantNotAllowed):
			logger.WarnContext(r.Context(), "Tenant not allowed", "error", err)
			response.WriteError(w, http.StatusForbidden, "Tenant niet toegestaan", response.CodeTenantNotAllowed)
			return
		case err != nil:
			logger.WarnContext(r.Context(), "Token rejected", "error", err)
			response.Unauthorized(w, "Ongeldig token")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		ctx = context.WithValue(ctx, logger.UserEmailKey, identity.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after RequireUser.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		if !ok {
			response.Unauthorized(w, "Geen authenticatie token gevonden")
			return
		}
		if !identity.Admin {
			logger.WarnContext(r.Context(), "Admin access denied")
			response.Forbidden(w, "Administratorrechten vereist")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	response.JSON(w, statusCode, data)
}

const maxJSONBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Ongeldige aanvraag")
		return false
	}
	return true
}

// writeServiceError maps domain errors to responses. Anything unrecognised
// is logged and answered with fallback as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var missing *domain.MissingFieldError
	switch {
	case errors.As(err, &missing):
		response.MissingFields(w, "Alle velden zijn verplicht", missing.Fields)
	case errors.Is(err, domain.ErrInvalidTimestamp):
		response.BadRequest(w, "Ongeldige datum of tijd")
	case errors.Is(err, domain.ErrInvalidRange):
		response.WriteError(w, http.StatusBadRequest, "Einddatum moet na startdatum liggen", response.CodeInvalidRange)
	case errors.Is(err, domain.ErrPastStart):
		response.WriteError(w, http.StatusBadRequest, "Startdatum kan niet in het verleden liggen", response.CodePastDateTime)
	case errors.Is(err, domain.ErrBookingConflict):
		response.Conflict(w, "Deze periode is al gereserveerd", response.CodeBookingConflict)
	case errors.Is(err, domain.ErrMaintenanceConflict):
		response.Conflict(w, "Deze periode is geblokkeerd voor onderhoud", response.CodeMaintenanceConflict)
	case errors.Is(err, domain.ErrInvalidPhoto):
		response.BadRequest(w, "Alleen afbeeldingen zijn toegestaan (jpeg, jpg, png, gif)")
	case errors.Is(err, domain.ErrPhotoTooLarge):
		response.WriteError(w, http.StatusRequestEntityTooLarge, "Foto mag maximaal 10 MB zijn", response.CodePayloadTooLarge)
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, "Niet gevonden")
	default:
		logger.ErrorContext(r.Context(), fallback, "error", err)
		response.InternalError(w, fallback)
	}
}
