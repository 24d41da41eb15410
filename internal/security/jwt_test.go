package security

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier_HS256(t *testing.T) {
	req := require.New(t)
	keys := NewHMACKeys([]byte("s3cret"))
	signer := NewJWTSigner(keys, Options{}, 24*time.Hour)
	verifier := NewJWTVerifier(keys, Options{})

	token, err := signer.SignAccessToken("u-42", time.Now())
	req.NoError(err)

	userID, err := verifier.Verify(token)
	req.NoError(err)
	req.Equal("u-42", userID)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	keys := NewHMACKeys([]byte("s3cret"))
	signer := NewJWTSigner(keys, Options{}, time.Hour)
	good, err := signer.SignAccessToken("u-1", time.Now())
	require.NoError(t, err)

	otherSigner := NewJWTSigner(NewHMACKeys([]byte("other")), Options{}, time.Hour)
	forged, err := otherSigner.SignAccessToken("u-1", time.Now())
	require.NoError(t, err)

	expired, err := signer.SignAccessToken("u-1", time.Now().Add(-48*time.Hour))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{UserID: "u-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		cause error
	}{
		{name: "missing", token: "   ", cause: ErrMissingToken},
		{name: "malformed", token: "not.a.jwt", cause: ErrInvalidToken},
		{name: "bad signature", token: forged, cause: ErrInvalidToken},
		{name: "expired", token: expired, cause: ErrTokenExpired},
		{name: "alg none", token: unsigned, cause: ErrInvalidToken},
		{name: "no subject", token: noSubject, cause: ErrInvalidSubject},
	}

	verifier := NewJWTVerifier(keys, Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			_, err := verifier.Verify(tt.token)
			req.ErrorIs(err, domain.ErrAuth)
			req.ErrorIs(err, tt.cause)
		})
	}

	_, err = verifier.Verify(good)
	require.NoError(t, err)
}

func TestJWTVerifier_ClockSkew(t *testing.T) {
	req := require.New(t)
	keys := NewHMACKeys([]byte("s3cret"))
	signer := NewJWTSigner(keys, Options{}, time.Minute)

	token, err := signer.SignAccessToken("u-1", time.Now().Add(-90*time.Second))
	req.NoError(err)

	_, err = NewJWTVerifier(keys, Options{}).Verify(token)
	req.ErrorIs(err, ErrTokenExpired)

	userID, err := NewJWTVerifier(keys, Options{ClockSkew: time.Minute}).Verify(token)
	req.NoError(err)
	req.Equal("u-1", userID)
}

func TestJWTVerifier_IssuerAudience(t *testing.T) {
	req := require.New(t)
	keys := NewHMACKeys([]byte("s3cret"))
	token, err := NewJWTSigner(keys, Options{Issuer: "auth", Audience: "chat"}, time.Hour).
		SignAccessToken("u-1", time.Now())
	req.NoError(err)

	_, err = NewJWTVerifier(keys, Options{Issuer: "auth", Audience: "chat"}).Verify(token)
	req.NoError(err)

	_, err = NewJWTVerifier(keys, Options{Issuer: "someone-else"}).Verify(token)
	req.ErrorIs(err, ErrInvalidIssuer)

	_, err = NewJWTVerifier(keys, Options{Audience: "billing"}).Verify(token)
	req.ErrorIs(err, ErrInvalidAudience)
}

func TestJWTVerifier_SubjectFallback(t *testing.T) {
	req := require.New(t)
	keys := NewHMACKeys([]byte("s3cret"))
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		StandardClaims: jwt.StandardClaims{Subject: "from-sub"},
	}).SignedString([]byte("s3cret"))
	req.NoError(err)

	userID, err := NewJWTVerifier(keys, Options{}).Verify(token)
	req.NoError(err)
	req.Equal("from-sub", userID)
}

func TestJWTVerifier_RS256(t *testing.T) {
	req := require.New(t)
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	req.NoError(err)

	token, err := NewJWTSigner(NewRSAKeys(priv, nil), Options{}, time.Hour).SignAccessToken("u-7", time.Now())
	req.NoError(err)

	userID, err := NewJWTVerifier(NewRSAKeys(nil, &priv.PublicKey), Options{}).Verify(token)
	req.NoError(err)
	req.Equal("u-7", userID)

	// HS256-токен не проходит проверку RS256-верификатором
	hs, err := NewJWTSigner(NewHMACKeys([]byte("x")), Options{}, time.Hour).SignAccessToken("u-7", time.Now())
	req.NoError(err)
	_, err = NewJWTVerifier(NewRSAKeys(nil, &priv.PublicKey), Options{}).Verify(hs)
	req.ErrorIs(err, ErrInvalidToken)

	_, err = NewJWTSigner(NewRSAKeys(nil, &priv.PublicKey), Options{}, time.Hour).SignAccessToken("u-7", time.Now())
	req.ErrorIs(err, ErrNoPrivateKey)
}

func TestLoadKeys(t *testing.T) {
	req := require.New(t)

	keys, err := LoadKeys(KeyConfig{Secret: "abc"})
	req.NoError(err)
	req.Equal(AlgHS256, keys.Alg())

	_, err = LoadKeys(KeyConfig{Alg: "HS256"})
	req.ErrorIs(err, ErrMissingKey)

	_, err = LoadKeys(KeyConfig{Alg: "RS256"})
	req.ErrorIs(err, ErrMissingKey)

	_, err = LoadKeys(KeyConfig{Alg: "ES512"})
	req.ErrorIs(err, ErrUnsupportedAlg)
}
