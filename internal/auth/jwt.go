package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"nfcattendance/internal/clock"
)

// Session is a signed faculty access token.
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Claims represents JWT payload.
type Claims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Version int    `json:"ver"`
	jwt.RegisteredClaims
}

// Issuer signs and parses faculty sessions with HS256.
type Issuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
}

func NewIssuer(key, issuer string, ttl time.Duration, clk clock.Clock) *Issuer {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Issuer{key: []byte(key), issuer: issuer, ttl: ttl, clock: clk}
}

// Issue signs a session for the faculty identified by id. version is the
// faculty's session version at issue time.
func (i *Issuer) Issue(id, email, name string, version int) (Session, error) {
	now := i.clock.Now()
	exp := now.Add(i.ttl)
	claims := Claims{
		Email:   email,
		Name:    name,
		Version: version,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   id,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: token, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims.
func (i *Issuer) Parse(tokenStr string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.key, nil
	}, jwt.WithTimeFunc(i.clock.Now))
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if i.issuer != "" && claims.Issuer != i.issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
