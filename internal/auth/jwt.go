// Package auth issues and verifies access tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/PaulBabatuyi/pairchat/internal/normalize"
)

// defaultKid names the single key of a manager built from one secret.
const defaultKid = "default"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownKey   = errors.New("unknown signing key")
)

// JWTManager signs and validates HS256 tokens. It holds a key set so
// secrets can be rotated: new tokens use the active kid, and tokens
// signed with any retained key still verify.
type JWTManager struct {
	keys      map[string][]byte // kid -> HMAC secret
	activeKid string            // kid that signs new tokens
	duration  time.Duration     // token lifetime
}

// Claims is the token payload.
type Claims struct {
	UserID               string `json:"user_id"` // uuid string
	Email                string `json:"email"`   // normalized
	jwt.RegisteredClaims        // sub, exp, iat
}

// UserUUID parses the user id claim.
func (c *Claims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

// NewJWTManager returns a manager with a single secret.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return NewJWTManagerFromKeys(map[string]string{defaultKid: secretKey}, defaultKid, duration)
}

// NewJWTManagerFromKeys returns a manager over a kid -> secret set.
// When activeKid is not in keys, the lexically smallest kid signs; a
// deployment should always name one explicitly.
func NewJWTManagerFromKeys(keys map[string]string, activeKid string, duration time.Duration) *JWTManager {
	m := &JWTManager{keys: make(map[string][]byte, len(keys)), activeKid: activeKid, duration: duration}
	// Copy the secrets in as raw bytes for HMAC
	for kid, secret := range keys {
		m.keys[kid] = []byte(secret)
	}
	// Fall back to the smallest kid when the active one is missing
	if _, ok := m.keys[m.activeKid]; !ok {
		m.activeKid = ""
		for kid := range m.keys {
			if m.activeKid == "" || kid < m.activeKid {
				m.activeKid = kid
			}
		}
	}
	return m
}

// GenerateToken issues a signed token for a user and returns it with its
// expiry.
func (m *JWTManager) GenerateToken(userID uuid.UUID, email string) (string, time.Time, error) {
	// Expiry is now + configured lifetime
	now := time.Now()
	expiresAt := now.Add(m.duration)

	// Build the payload with the user id and normalized email
	claims := &Claims{
		UserID: userID.String(),
		Email:  normalize.Email(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt), // expiration time
			IssuedAt:  jwt.NewNumericDate(now),       // creation time
		},
	}

	// HS256 token; kid lets VerifyToken pick the right secret after a rotation
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = m.activeKid

	// Sign with the active secret to get the final JWT string
	signed, err := token.SignedString(m.keys[m.activeKid])
	if err != nil {
		return "", time.Time{}, err // empty token and zero time on error
	}
	return signed, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	// Empty claims to decode into
	claims := &Claims{}

	// ParseWithClaims checks the signature and expiry; the callback
	// chooses the secret
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// reject anything but HMAC so a public key can never be used as a secret
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		// Look the secret up by kid
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			// tokens issued before kids were added
			kid = m.activeKid
		}
		key, ok := m.keys[kid]
		if !ok {
			return nil, ErrUnknownKey
		}
		return key, nil
	})

	// Malformed, expired or badly signed
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	// The user id claim must be a uuid
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword returns a bcrypt hash of password at the default cost.
func HashPassword(password string) (string, error) {
	// bcrypt salts internally; DefaultCost is 10 rounds
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err // empty string if hashing fails
	}
	// Stored as text in the users table
	return string(hashed), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(hash, password string) error {
	// nil on match, bcrypt.ErrMismatchedHashAndPassword otherwise
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
