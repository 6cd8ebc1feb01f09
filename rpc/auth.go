package rpc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"lendchain/crypto"
)

const defaultClockSkew = 2 * time.Minute

var (
	errMissingToken = errors.New("missing bearer token")
	errAuthDisabled = errors.New("authentication not configured")
)

// Authenticator resolves the caller of a mutating call from an HS256 bearer
// token. The subject claim carries the caller address.
type Authenticator struct {
	secret []byte
	issuer string
	skew   time.Duration
	nowFn  func() time.Time
}

// NewAuthenticator returns an authenticator for secret. An empty secret
// rejects every authenticated call.
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{
		secret: []byte(strings.TrimSpace(secret)),
		issuer: strings.TrimSpace(issuer),
		skew:   defaultClockSkew,
		nowFn:  time.Now,
	}
}

// Caller validates the request's bearer token and returns the address in its
// subject.
func (a *Authenticator) Caller(r *http.Request) ([20]byte, error) {
	if a == nil || len(a.secret) == 0 {
		return [20]byte{}, errAuthDisabled
	}
	tokenString := extractBearer(r.Header.Get("Authorization"))
	if tokenString == "" {
		return [20]byte{}, errMissingToken
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.skew),
		jwt.WithTimeFunc(a.nowFn),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return [20]byte{}, errors.New("token invalid")
	}
	caller, err := crypto.ParseAddress(claims.Subject)
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid token subject: %w", err)
	}
	return caller, nil
}

// IssueToken signs a token naming caller as subject. Operators hand these to
// clients out of band.
func IssueToken(secret, issuer string, caller [20]byte, ttl time.Duration, now time.Time) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", errAuthDisabled
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive")
	}
	claims := jwt.RegisteredClaims{
		Subject:   crypto.FromBytes(caller).String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if issuer = strings.TrimSpace(issuer); issuer != "" {
		claims.Issuer = issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func extractBearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
