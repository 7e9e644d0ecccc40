// Package auth verifies dashboard bearer tokens and resolves them to a caller id.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"blockhost-portal/internal/common/config"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Authenticator resolves a raw bearer token to the caller's stable user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// New builds the authenticator selected by cfg.Provider.
func New(cfg config.AuthConfig) (Authenticator, error) {
	switch cfg.Provider {
	case config.AuthProviderJWT:
		return NewJWTAuthenticator(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience), nil
	case config.AuthProviderKeycloak:
		return NewKeycloakClient(cfg.Keycloak.URL, cfg.Keycloak.Realm, cfg.Keycloak.ClientID, cfg.Keycloak.ClientSecret), nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.Provider)
	}
}
