package auth

import (
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims are the token claims the API cares about
type Claims struct {
	Sub   string
	Email string
	Name  string
	Iss   string
}

// Verifier verifies JWT bearer tokens against a JWKS key set
type Verifier struct {
	jwksManager *JWKSManager
	jwksURL     string
	issuer      string
}

// NewVerifier creates a new JWT verifier
func NewVerifier(jwksManager *JWKSManager, jwksURL, issuer string) *Verifier {
	return &Verifier{
		jwksManager: jwksManager,
		jwksURL:     jwksURL,
		issuer:      issuer,
	}
}

// Verify checks the token signature and validity window and extracts claims
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	keys, err := v.jwksManager.GetJWKS(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	token, err := jwt.Parse([]byte(tokenString), jwt.WithKeySet(keys), jwt.WithValidate(true))
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}

	if v.issuer != "" && token.Issuer() != v.issuer {
		return nil, fmt.Errorf("token issuer mismatch: expected %s, got %s", v.issuer, token.Issuer())
	}

	claims := &Claims{
		Sub: token.Subject(),
		Iss: token.Issuer(),
	}
	if email, ok := token.Get("email"); ok {
		if s, ok := email.(string); ok {
			claims.Email = s
		}
	}
	if name, ok := token.Get("name"); ok {
		if s, ok := name.(string); ok {
			claims.Name = s
		}
	}

	return claims, nil
}
