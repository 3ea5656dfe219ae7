package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelrealm/territory-engine/internal/logger"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	gin.SetMode(gin.TestMode)
	code := m.Run()
	os.Exit(code)
}

type signer struct {
	key       *rsa.PrivateKey
	publicPEM string
}

func newSigner(t *testing.T) *signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	return &signer{key: key, publicPEM: publicPEM}
}

func (s *signer) token(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	require.NoError(t, err)
	return tok
}

func TestAuthenticateJWT(t *testing.T) {
	s := newSigner(t)
	cfg := AuthConfig{JWTPublicKey: s.publicPEM}

	tok := s.token(t, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	result := Authenticate("Bearer "+tok, cfg)
	require.True(t, result.Success)
	assert.Equal(t, "jwt", result.AuthType)
	assert.Equal(t, "alice", result.AuthSubject)
	require.NotNil(t, result.Claims)
	assert.Equal(t, "alice", result.Claims.Subject)
}

func TestAuthenticateJWTExpired(t *testing.T) {
	s := newSigner(t)
	cfg := AuthConfig{JWTPublicKey: s.publicPEM}

	tok := s.token(t, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})

	result := Authenticate("Bearer "+tok, cfg)
	assert.False(t, result.Success)
	assert.Error(t, result.Error)
}

func TestAuthenticateJWTWrongKey(t *testing.T) {
	issuer := newSigner(t)
	verifier := newSigner(t)
	cfg := AuthConfig{JWTPublicKey: verifier.publicPEM}

	tok := issuer.token(t, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	result := Authenticate("Bearer "+tok, cfg)
	assert.False(t, result.Success)
}

func TestAuthenticateJWTWithoutConfiguredKey(t *testing.T) {
	s := newSigner(t)
	tok := s.token(t, jwt.RegisteredClaims{Subject: "alice"})

	result := Authenticate("Bearer "+tok, AuthConfig{})
	assert.False(t, result.Success)
}

func TestAuthenticateAPIKey(t *testing.T) {
	cfg := AuthConfig{APIKeys: []string{"key-one", "key-two"}}

	result := Authenticate("ApiKey key-two", cfg)
	require.True(t, result.Success)
	assert.Equal(t, "apikey", result.AuthType)
	assert.Empty(t, result.AuthSubject)

	result = Authenticate("ApiKey bogus", cfg)
	assert.False(t, result.Success)

	result = Authenticate("ApiKey key-one", AuthConfig{})
	assert.False(t, result.Success, "no keys configured means nothing authenticates")
}

func TestAuthenticateMalformedHeaders(t *testing.T) {
	cfg := AuthConfig{APIKeys: []string{"key-one"}}

	for _, header := range []string{"", "Bearer", "Basic dXNlcjpwYXNz", "key-one"} {
		result := Authenticate(header, cfg)
		assert.False(t, result.Success, "header %q", header)
		assert.Error(t, result.Error)
	}
}

func runAuthMiddleware(mw gin.HandlerFunc, authHeader string) (*httptest.ResponseRecorder, bool) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		c.Request.Header.Set("Authorization", authHeader)
	}

	reached := false
	mw(c)
	if !c.IsAborted() {
		reached = true
	}
	return w, reached
}

func TestAuthMiddlewareStoresSubject(t *testing.T) {
	s := newSigner(t)
	cfg := AuthConfig{JWTPublicKey: s.publicPEM}
	tok := s.token(t, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Authorization", "Bearer "+tok)

	Auth(cfg)(c)
	require.False(t, c.IsAborted())
	assert.Equal(t, "alice", AuthSubject(c))
}

func TestAPIKeyAuthRejectsJWT(t *testing.T) {
	s := newSigner(t)
	cfg := AuthConfig{JWTPublicKey: s.publicPEM, APIKeys: []string{"key-one"}}
	tok := s.token(t, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	w, reached := runAuthMiddleware(APIKeyAuth(cfg), "Bearer "+tok)
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, reached = runAuthMiddleware(APIKeyAuth(cfg), "ApiKey key-one")
	assert.True(t, reached)
}
