// Package sso adapts external identity providers to the service layer's
// IdentityVerifier seam. Google is the only provider wired today; the
// provider switch leaves room for more.
package sso

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/api/idtoken"

	"storegate/internal/model"
	"storegate/internal/service"
)

// GoogleVerifier validates Google ID tokens against a configured OAuth
// client id.
type GoogleVerifier struct {
	clientID string
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID}
}

// Verify checks the provider name and validates the ID token, returning the
// identity Google asserts. Unknown providers and invalid tokens both error;
// the service maps either to a uniform credential failure.
func (v *GoogleVerifier) Verify(ctx context.Context, provider, token string) (service.Identity, error) {
	if !strings.EqualFold(provider, model.ProviderGoogle) {
		return service.Identity{}, errors.New("unsupported sso provider: " + provider)
	}
	if v.clientID == "" {
		return service.Identity{}, errors.New("google client id not configured")
	}
	payload, err := idtoken.Validate(ctx, token, v.clientID)
	if err != nil {
		return service.Identity{}, err
	}
	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return service.Identity{}, errors.New("email not found in claims")
	}
	given, _ := payload.Claims["given_name"].(string)
	family, _ := payload.Claims["family_name"].(string)
	return service.Identity{Email: email, FirstName: given, LastName: family}, nil
}
