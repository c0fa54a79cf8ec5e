package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken     = errors.New("missing bearer token")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTenantNotAllowed = errors.New("tenant not allowed")
)

const (
	issuerV2 = "https://login.microsoftonline.com/%s/v2.0"
	issuerV1 = "https://sts.windows.net/%s/"
)

// Claims are the Entra ID token claims the app relies on.
type Claims struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	UPN               string `json:"upn"`
	Name              string `json:"name"`
	TenantID          string `json:"tid"`
	jwt.RegisteredClaims
}

// PrincipalEmail picks the first address-like claim Entra populated.
func (c *Claims) PrincipalEmail() string {
	for _, v := range []string{c.Email, c.PreferredUsername, c.UPN} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Identity is the authenticated caller.
type Identity struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	TenantID string `json:"tid"`
	Admin    bool   `json:"admin"`
}

type Options struct {
	ClientID       string
	TenantID       string
	AllowedTenants []string
	AdminEmails    []string
}

// Verifier validates bearer tokens and classifies callers.
type Verifier struct {
	keyfunc        jwt.Keyfunc
	parser         *jwt.Parser
	audiences      []string
	tenantID       string
	allowedTenants map[string]struct{}
	admins         map[string]struct{}
}

func NewVerifier(keyfunc jwt.Keyfunc, opts Options) *Verifier {
	v := &Verifier{
		keyfunc: keyfunc,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"RS256"}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(time.Minute),
		),
		audiences:      []string{opts.ClientID, "api://" + opts.ClientID},
		tenantID:       opts.TenantID,
		allowedTenants: make(map[string]struct{}),
		admins:         make(map[string]struct{}),
	}
	for _, t := range opts.AllowedTenants {
		if t = strings.TrimSpace(t); t != "" {
			v.allowedTenants[t] = struct{}{}
		}
	}
	for _, e := range opts.AdminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			v.admins[e] = struct{}{}
		}
	}
	return v
}

// NewJWKS fetches the signing keys at url and keeps them refreshed until ctx
// is canceled.
func NewJWKS(ctx context.Context, url string) (jwt.Keyfunc, error) {
	k, err := keyfunc.NewDefaultCtx(ctx, []string{url})
	if err != nil {
		return nil, fmt.Errorf("load jwks: %w", err)
	}
	return k.Keyfunc, nil
}

// Verify checks signature, lifetime, audience, issuer and tenant, and
// resolves the caller identity. Tenant rejections wrap ErrTenantNotAllowed;
// everything else wraps ErrInvalidToken.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(tokenString, claims, v.keyfunc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !v.audienceOK(claims.Audience) {
		return nil, fmt.Errorf("%w: unexpected audience", ErrInvalidToken)
	}
	if claims.TenantID == "" {
		return nil, fmt.Errorf("%w: missing tid", ErrInvalidToken)
	}
	if !v.issuerOK(claims.Issuer, claims.TenantID) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}

	email := claims.PrincipalEmail()
	if email == "" {
		return nil, fmt.Errorf("%w: no email claim", ErrInvalidToken)
	}

	if len(v.allowedTenants) > 0 {
		if _, ok := v.allowedTenants[claims.TenantID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrTenantNotAllowed, claims.TenantID)
		}
	}

	return &Identity{
		Email:    email,
		Name:     claims.Name,
		TenantID: claims.TenantID,
		Admin:    v.IsAdmin(email),
	}, nil
}

func (v *Verifier) audienceOK(aud jwt.ClaimStrings) bool {
	for _, a := range aud {
		if slices.Contains(v.audiences, a) {
			return true
		}
	}
	return false
}

// issuerOK accepts the v1 or v2 issuer of the token's own tenant, or only
// the configured tenant when one is pinned.
func (v *Verifier) issuerOK(iss, tid string) bool {
	if v.tenantID != "" && tid != v.tenantID {
		return false
	}
	return iss == fmt.Sprintf(issuerV2, tid) || iss == fmt.Sprintf(issuerV1, tid)
}

func (v *Verifier) IsAdmin(email string) bool {
	_, ok := v.admins[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
