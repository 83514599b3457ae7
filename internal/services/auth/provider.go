package auth

import (
	"context"
	"errors"
	"fmt"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type AuthType string

const (
	AuthTypeClerk AuthType = "clerk"
	AuthTypeJWT   AuthType = "jwt"
)

// Identity is the authenticated user behind a request.
type Identity struct {
	Type   AuthType
	UserID string
	Email  string
}

// TokenVerifier turns a bearer token into an Identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type chain []TokenVerifier

// Chain tries each verifier in order and accepts the first identity returned.
func Chain(verifiers ...TokenVerifier) TokenVerifier {
	if len(verifiers) == 1 {
		return verifiers[0]
	}
	return chain(verifiers)
}

func (c chain) Verify(ctx context.Context, token string) (*Identity, error) {
	var errs []error
	for _, v := range c {
		identity, err := v.Verify(ctx, token)
		if err == nil {
			return identity, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrInvalidToken
	}
	return nil, fmt.Errorf("%w: %w", ErrInvalidToken, errors.Join(errs...))
}
