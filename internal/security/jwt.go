package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/golang-jwt/jwt"
)

// AccessClaims совместимы с токенами вида {"userId": "...", "exp": ...};
// если userId нет, идентификатор берётся из sub.
type AccessClaims struct {
	jwt.StandardClaims
	UserID string `json:"userId,omitempty"`
}

type Options struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// JWTVerifier проверяет bearer-токен один раз на подключение.
type JWTVerifier struct {
	keys      Keys
	issuer    string
	audience  string
	clockSkew time.Duration
	now       func() time.Time
}

func NewJWTVerifier(keys Keys, opts Options) *JWTVerifier {
	return &JWTVerifier{
		keys:      keys,
		issuer:    opts.Issuer,
		audience:  opts.Audience,
		clockSkew: opts.ClockSkew,
		now:       time.Now,
	}
}

// Verify возвращает userID владельца токена. Все ошибки оборачивают domain.ErrAuth.
func (v *JWTVerifier) Verify(tokenStr string) (string, error) {
	claims, err := v.parse(strings.TrimSpace(tokenStr))
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrAuth, err)
	}

	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: %w", domain.ErrAuth, ErrInvalidSubject)
	}
	return id, nil
}

func (v *JWTVerifier) parse(tokenStr string) (*AccessClaims, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}
	if v.keys.method == nil {
		return nil, ErrMissingKey
	}

	// exp/nbf проверяем сами, с учётом clockSkew
	parser := &jwt.Parser{
		ValidMethods:         []string{v.keys.Alg()},
		SkipClaimsValidation: true,
	}
	claims := &AccessClaims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != v.keys.Alg() {
			return nil, ErrInvalidToken
		}
		return v.keys.verificationKey(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, ErrInvalidIssuer
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return nil, ErrInvalidAudience
	}

	now := v.now()
	if claims.ExpiresAt != 0 && now.After(time.Unix(claims.ExpiresAt, 0).Add(v.clockSkew)) {
		return nil, ErrTokenExpired
	}
	if claims.NotBefore != 0 && now.Before(time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

// JWTSigner выпускает токены. В сервисе используется только cmd/tokengen и тестами;
// боевые токены выдаёт внешний auth.
type JWTSigner struct {
	keys     Keys
	issuer   string
	audience string
	ttl      time.Duration
}

func NewJWTSigner(keys Keys, opts Options, ttl time.Duration) *JWTSigner {
	return &JWTSigner{
		keys:     keys,
		issuer:   opts.Issuer,
		audience: opts.Audience,
		ttl:      ttl,
	}
}

func (s *JWTSigner) TTL() time.Duration { return s.ttl }

// SignAccessToken выпускает JWT с userId=sub=userID и exp=now+ttl.
func (s *JWTSigner) SignAccessToken(userID string, now time.Time) (string, error) {
	key, err := s.keys.signingKey()
	if err != nil {
		return "", err
	}
	claims := AccessClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:  userID,
			Issuer:   s.issuer,
			Audience: s.audience,
			IssuedAt: now.Unix(),
		},
		UserID: userID,
	}
	if s.ttl > 0 {
		claims.ExpiresAt = now.Add(s.ttl).Unix()
	}

	return jwt.NewWithClaims(s.keys.method, claims).SignedString(key)
}
