package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/evgeniivall/notes-auth-micro/internal/application/auth"
	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

type JWTSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTSigner signs HS256 session tokens valid for expiresInDays days.
func NewJWTSigner(secret string, issuer string, expiresInDays int) *JWTSigner {
	if expiresInDays <= 0 {
		expiresInDays = 90
	}
	return &JWTSigner{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    time.Duration(expiresInDays) * 24 * time.Hour,
		now:    time.Now,
	}
}

func (s *JWTSigner) WithClock(now func() time.Time) *JWTSigner {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *JWTSigner) TTL() time.Duration { return s.ttl }

type sessionClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

func (s *JWTSigner) Issue(userID string) (auth.SessionToken, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return auth.SessionToken{}, domain.ErrTokenSignFailed(err)
	}
	// exp is truncated to seconds in the token
	return auth.SessionToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (s *JWTSigner) Verify(token string) (auth.SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		// prevent alg confusion
		if t.Method != jwt.SigningMethodHS256 {
			return nil, domain.ErrTokenInvalid()
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return auth.SessionClaims{}, domain.ErrTokenExpired()
		}
		return auth.SessionClaims{}, domain.ErrTokenInvalid()
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || claims.IssuedAt == nil {
		return auth.SessionClaims{}, domain.ErrTokenInvalid()
	}

	userID := claims.Subject
	if userID == "" {
		userID = claims.UserID
	}
	if userID == "" {
		return auth.SessionClaims{}, domain.ErrTokenInvalid()
	}

	return auth.SessionClaims{
		UserID:    userID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
