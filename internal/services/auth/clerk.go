package auth

import (
	"context"
	"fmt"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkjwt "github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/clerk/clerk-sdk-go/v2/jwks"
)

// ClerkVerifier validates Clerk session tokens against the instance JWKS.
type ClerkVerifier struct {
	jwksClient *jwks.Client
}

func NewClerkVerifier(secretKey string) *ClerkVerifier {
	return &ClerkVerifier{
		jwksClient: jwks.NewClient(&clerk.ClientConfig{
			BackendConfig: clerk.BackendConfig{Key: clerk.String(secretKey)},
		}),
	}
}

func (v *ClerkVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	claims, err := clerkjwt.Verify(ctx, &clerkjwt.VerifyParams{
		Token:      token,
		JWKSClient: v.jwksClient,
	})
	if err != nil {
		return nil, fmt.Errorf("clerk: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("clerk: token has no subject")
	}

	return &Identity{Type: AuthTypeClerk, UserID: claims.Subject}, nil
}
