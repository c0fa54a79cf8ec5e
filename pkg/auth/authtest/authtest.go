// Package authtest signs Entra-shaped tokens with a throwaway RSA key for
// tests of code that sits behind auth.Verifier.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ClientID = "11111111-2222-3333-4444-555555555555"
	TenantID = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
	KeyID    = "test-key"
)

type Signer struct {
	t   testing.TB
	key *rsa.PrivateKey
}

func NewSigner(t testing.TB) *Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return &Signer{t: t, key: key}
}

// Keyfunc resolves only the signer's own key id.
func (s *Signer) Keyfunc(token *jwt.Token) (any, error) {
	if kid, _ := token.Header["kid"].(string); kid != KeyID {
		return nil, errors.New("unknown kid")
	}
	return &s.key.PublicKey, nil
}

// Claims returns a valid claim set for email in TenantID.
func Claims(email string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"aud":                ClientID,
		"iss":                fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", TenantID),
		"tid":                TenantID,
		"preferred_username": email,
		"name":               "Test User",
		"iat":                now.Unix(),
		"nbf":                now.Unix(),
		"exp":                now.Add(time.Hour).Unix(),
	}
}

func (s *Signer) Sign(claims jwt.MapClaims) string {
	s.t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = KeyID
	signed, err := tok.SignedString(s.key)
	if err != nil {
		s.t.Fatalf("sign token: %v", err)
	}
	return signed
}

// Token is Sign(Claims(email)).
func (s *Signer) Token(email string) string {
	s.t.Helper()
	return s.Sign(Claims(email))
}
