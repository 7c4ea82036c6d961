package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://clerk.example.com"

func testVerifier(t *testing.T, audience string) (*JWKSVerifier, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	b64 := base64.RawURLEncoding.EncodeToString
	set, err := json.Marshal(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "test-key",
			"alg": "RS256",
			"use": "sig",
			"n":   b64(key.N.Bytes()),
			"e":   b64(big.NewInt(int64(key.E)).Bytes()),
		}},
	})
	require.NoError(t, err)

	jwks, err := keyfunc.NewJWKSetJSON(set)
	require.NoError(t, err)

	return newJWKSVerifier(jwks, testIssuer, audience), key
}

func signRS256(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "test-key"
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWKSVerifierMetadataRole(t *testing.T) {
	v, key := testVerifier(t, "")

	token := signRS256(t, key, jwt.MapClaims{
		"sub":      "user_2abc",
		"iss":      testIssuer,
		"exp":      time.Now().Add(time.Minute).Unix(),
		"email":    "ana@example.com",
		"metadata": map[string]string{"role": "Admin"},
	})

	claims, err := v.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "user_2abc", claims.UserID)
	require.Equal(t, RoleAdmin, claims.RoleName())
}

func TestJWKSVerifierRejects(t *testing.T) {
	v, key := testVerifier(t, "companion")

	cases := map[string]jwt.MapClaims{
		"wrong issuer": {
			"sub": "u", "iss": "https://evil.example", "aud": "companion",
			"exp": time.Now().Add(time.Minute).Unix(),
		},
		"missing exp": {
			"sub": "u", "iss": testIssuer, "aud": "companion",
		},
		"expired": {
			"sub": "u", "iss": testIssuer, "aud": "companion",
			"exp": time.Now().Add(-time.Minute).Unix(),
		},
		"wrong audience": {
			"sub": "u", "iss": testIssuer, "aud": "other",
			"exp": time.Now().Add(time.Minute).Unix(),
		},
	}

	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Validate(signRS256(t, key, claims))
			require.Error(t, err)
		})
	}
}

func TestLegacyTokenRoundTrip(t *testing.T) {
	token, err := IssueLegacyToken("secret", "user_1", "a@b.c", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateLegacyToken(token, "secret")
	require.NoError(t, err)
	require.Equal(t, "user_1", claims.UserID)
	require.Equal(t, RoleAdmin, claims.Role)

	_, err = ValidateLegacyToken(token, "other-secret")
	require.Error(t, err)
}
