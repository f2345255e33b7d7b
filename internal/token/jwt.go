package token

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dtroode/journal-exchange/internal/model"
)

// Claims is the signed envelope shared by every token purpose. Data holds the
// purpose-specific payload and is decoded only after Purpose has been checked.
type Claims struct {
	jwt.RegisteredClaims
	Purpose model.TokenPurpose `json:"pur"`
	Data    json.RawMessage    `json:"dat"`
}

var _ model.TokenCodec = (*JWT)(nil)

// JWT implements TokenCodec backed by symmetric HMAC.
type JWT struct {
	secretKey []byte
	now       func() time.Time
}

// NewJWT creates a token codec signing with the provided secret key.
func NewJWT(secretKey string) *JWT {
	return &JWT{secretKey: []byte(secretKey), now: time.Now}
}

// WithClock returns a copy of the codec that reads time from now.
func (j *JWT) WithClock(now func() time.Time) *JWT {
	return &JWT{secretKey: j.secretKey, now: now}
}

// Issue signs payload for purpose, expiring ttl from now.
func (j *JWT) Issue(purpose model.TokenPurpose, payload any, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("token lifetime must be positive, got %s", ttl)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s payload: %w", purpose, err)
	}

	// NumericDate has whole-second precision. Issuing at a whole second and
	// rounding the expiry up keeps the token valid for the full lifetime
	// measured from its iat.
	issuedAt := j.now().Truncate(jwt.TimePrecision)
	expiresAt := issuedAt.Add(ttl)
	if rounded := expiresAt.Truncate(jwt.TimePrecision); rounded.Before(expiresAt) {
		expiresAt = rounded.Add(jwt.TimePrecision)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{string(purpose)},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Purpose: purpose,
		Data:    data,
	})

	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", purpose, err)
	}

	return tokenString, nil
}

// Verify validates tokenString for purpose and decodes its payload into dst.
// Every failure is reported as model.ErrInvalidToken.
func (j *JWT) Verify(purpose model.TokenPurpose, tokenString string, dst any) error {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return j.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(string(purpose)),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidToken, err)
	}
	if !token.Valid {
		return model.ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return fmt.Errorf("%w: purpose mismatch: %s", model.ErrInvalidToken, claims.Purpose)
	}

	dec := json.NewDecoder(bytes.NewReader(claims.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed %s payload: %w", model.ErrInvalidToken, purpose, err)
	}

	return nil
}

// IsExpired reports whether err was caused by an expired token.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
