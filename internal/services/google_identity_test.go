package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "galaxy-client.apps.googleusercontent.com"

type googleFixture struct {
	key      *rsa.PrivateKey
	verifier *GoogleTokenVerifier
}

func newGoogleFixture(t *testing.T) *googleFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	certs := map[string]string{
		"test-kid": string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(certs)
	}))
	t.Cleanup(server.Close)

	return &googleFixture{
		key:      key,
		verifier: NewGoogleTokenVerifier(testClientID).WithCertsURL(server.URL),
	}
}

func (f *googleFixture) sign(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func validGoogleClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            testClientID,
		"sub":            "1234567890",
		"email":          "dana@example.com",
		"email_verified": true,
		"given_name":     "Dana",
		"family_name":    "Lee",
		"picture":        "https://example.com/dana.png",
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
}

func TestGoogleTokenVerifier_Verify(t *testing.T) {
	f := newGoogleFixture(t)

	identity, err := f.verifier.Verify(context.Background(), f.sign(t, "test-kid", validGoogleClaims()))
	require.NoError(t, err)
	assert.Equal(t, &ProviderIdentity{
		Email:      "dana@example.com",
		GivenName:  "Dana",
		FamilyName: "Lee",
		Picture:    "https://example.com/dana.png",
	}, identity)
}

func TestGoogleTokenVerifier_BareIssuer(t *testing.T) {
	f := newGoogleFixture(t)
	claims := validGoogleClaims()
	claims["iss"] = "accounts.google.com"

	_, err := f.verifier.Verify(context.Background(), f.sign(t, "test-kid", claims))
	assert.NoError(t, err)
}

func TestGoogleTokenVerifier_Rejects(t *testing.T) {
	f := newGoogleFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		kid    string
		mutate func(jwt.MapClaims)
	}{
		{"wrong audience", "test-kid", func(c jwt.MapClaims) { c["aud"] = "someone-else" }},
		{"wrong issuer", "test-kid", func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" }},
		{"expired", "test-kid", func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }},
		{"no email", "test-kid", func(c jwt.MapClaims) { delete(c, "email") }},
		{"unverified email", "test-kid", func(c jwt.MapClaims) { c["email_verified"] = false }},
		{"unknown key id", "other-kid", func(c jwt.MapClaims) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validGoogleClaims()
			tt.mutate(claims)
			_, err := f.verifier.Verify(ctx, f.sign(t, tt.kid, claims))
			assert.Error(t, err)
		})
	}
}

func TestGoogleTokenVerifier_RejectsForeignSignature(t *testing.T) {
	f := newGoogleFixture(t)
	other := newGoogleFixture(t)

	_, err := f.verifier.Verify(context.Background(), other.sign(t, "test-kid", validGoogleClaims()))
	assert.Error(t, err)
}

func TestGoogleTokenVerifier_RejectsHMAC(t *testing.T) {
	f := newGoogleFixture(t)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validGoogleClaims())
	token.Header["kid"] = "test-kid"
	signed, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = f.verifier.Verify(context.Background(), signed)
	assert.Error(t, err)
}

func TestEmailVerified(t *testing.T) {
	assert.True(t, emailVerified(true))
	assert.True(t, emailVerified("true"))
	assert.False(t, emailVerified(false))
	assert.False(t, emailVerified("false"))
	assert.False(t, emailVerified(nil))
}
