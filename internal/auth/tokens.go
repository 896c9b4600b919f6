// Package auth issues and verifies the bearer tokens that guard remote tool
// execution on the tool server.
package auth

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim of every token this package signs.
const Issuer = "issuebridge"

// Token prefix used when tokens are handed out to operators.
const tokenPrefix = "ibt_"

// ErrMissingSecret is returned when signing without a configured secret.
var ErrMissingSecret = errors.New("token secret not configured")

// Claims are the claims of a tool-call token.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// Verifier signs and verifies HS256 tokens with a shared secret.
type Verifier struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

// NewVerifier returns a Verifier for secret. An empty secret yields a
// Verifier that rejects every token.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		leeway: 5 * time.Second,
		now:    time.Now,
	}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// Issue signs a token for subject. A zero ttl issues a token without expiry.
func (v *Verifier) Issue(subject string, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", ErrMissingSecret
	}
	now := v.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   Issuer,
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
		Scope: "tools:call",
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return tokenPrefix + signed, nil
}

// VerifyToken verifies a token (with or without prefix) and returns its claims.
func (v *Verifier) VerifyToken(token string) (*Claims, error) {
	if !v.Enabled() {
		return nil, ErrMissingSecret
	}
	token = strings.TrimPrefix(token, tokenPrefix)

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "token verification failed")
	}
	if claims.Scope != "tools:call" {
		return nil, errors.Errorf("token scope %q does not allow tool calls", claims.Scope)
	}
	return claims, nil
}
