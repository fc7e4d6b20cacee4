package service

import (
	"fmt"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
)

// GoogleVerifier checks a Google ID token and returns the verified identity.
type GoogleVerifier interface {
	Verify(idToken string) (email, subject string, err error)
}

// GoogleIDTokenVerifier validates tokens against the configured OAuth client ids.
type GoogleIDTokenVerifier struct {
	clientIDs []string
}

// NewGoogleIDTokenVerifier constructs a verifier for the given client ids.
func NewGoogleIDTokenVerifier(clientIDs []string) *GoogleIDTokenVerifier {
	return &GoogleIDTokenVerifier{clientIDs: clientIDs}
}

// Verify validates the signature and audience, then decodes the claim set.
func (v *GoogleIDTokenVerifier) Verify(idToken string) (string, string, error) {
	verifier := googleAuthIDTokenVerifier.Verifier{}
	if err := verifier.VerifyIDToken(idToken, v.clientIDs); err != nil {
		return "", "", fmt.Errorf("verify google id token: %w", err)
	}

	claims, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return "", "", fmt.Errorf("decode google id token: %w", err)
	}
	return claims.Email, claims.Sub, nil
}
