package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
)

const GoogleCertsURL = "https://www.googleapis.com/oauth2/v1/certs"

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// GoogleTokenVerifier checks Google-issued ID tokens against Google's public
// signing certificates.
type GoogleTokenVerifier struct {
	clientID   string
	certsURL   string
	httpClient *http.Client
}

func NewGoogleTokenVerifier(clientID string) *GoogleTokenVerifier {
	return &GoogleTokenVerifier{
		clientID:   clientID,
		certsURL:   GoogleCertsURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithCertsURL points the verifier at a different certificate endpoint.
func (v *GoogleTokenVerifier) WithCertsURL(url string) *GoogleTokenVerifier {
	v.certsURL = url
	return v
}

func (v *GoogleTokenVerifier) Verify(ctx context.Context, idToken string) (*ProviderIdentity, error) {
	token, err := jwt.Parse(idToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		cert, err := v.getPemCert(ctx, token)
		if err != nil {
			return nil, err
		}
		return jwt.ParseRSAPublicKeyFromPEM([]byte(cert))
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !claims.VerifyAudience(v.clientID, true) {
		return nil, errors.New("token audience mismatch")
	}
	if !verifyIssuer(claims) {
		return nil, errors.New("token issuer mismatch")
	}

	email, _ := claims["email"].(string)
	if email == "" {
		return nil, errors.New("token has no email claim")
	}
	if !emailVerified(claims["email_verified"]) {
		return nil, errors.New("email address is not verified")
	}

	identity := &ProviderIdentity{Email: email}
	identity.GivenName, _ = claims["given_name"].(string)
	identity.FamilyName, _ = claims["family_name"].(string)
	identity.Picture, _ = claims["picture"].(string)
	return identity, nil
}

func verifyIssuer(claims jwt.MapClaims) bool {
	for _, iss := range googleIssuers {
		if claims.VerifyIssuer(iss, true) {
			return true
		}
	}
	return false
}

func emailVerified(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true"
	}
	return false
}

// getPemCert fetches Google's kid → PEM certificate map and picks the token's key.
func (v *GoogleTokenVerifier) getPemCert(ctx context.Context, token *jwt.Token) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code fetching certificates: %d", resp.StatusCode)
	}

	certs := map[string]string{}
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return "", err
	}

	kid, _ := token.Header["kid"].(string)
	cert, ok := certs[kid]
	if !ok {
		return "", errors.New("unable to find appropriate key")
	}
	return cert, nil
}
