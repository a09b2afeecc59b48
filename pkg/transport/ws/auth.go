package ws

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Authenticator issues and verifies the bearer tokens a Bridge requires
// before upgrading a connection, grounded on the source's HMAC JWT
// middleware but trimmed to the single "Authorization: Bearer <token>"
// lookup a WebSocket handshake actually carries.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator returns an Authenticator signing and verifying with
// HS256 under secret.
func NewAuthenticator(secret []byte) *Authenticator {
	if len(secret) == 0 {
		panic("ws: authenticator secret must not be empty")
	}
	return &Authenticator{secret: secret}
}

// IssueToken signs a token identifying subject, valid for ttl.
func (a *Authenticator) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// VerifyRequest extracts and validates the bearer token on an upgrade
// request, returning the subject claim.
func (a *Authenticator) VerifyRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("missing bearer token")
	}
	return a.Verify(parts[1])
}

// Verify validates a raw token string and returns its subject claim.
func (a *Authenticator) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("token is not valid")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("token missing subject")
	}
	return sub, nil
}

// HashPassword hashes a plaintext credential for storage, used by whatever
// caller-side account store issues tokens from a login endpoint.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePassword reports whether plaintext matches a hash produced by
// HashPassword.
func ComparePassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
