// Package auth provides JWT issuance/verification and password hashing.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/kexinw/sit-marketplace-api/internal/normalize"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"
)

// JWTManager signs and validates the JWT tokens used by the API.
type JWTManager struct {
	secretKey string
	duration  time.Duration
}

// Claims is the custom JWT payload (user id + email).
type Claims struct {
	UserID string `json:"user_id"` // MongoDB ObjectID as hex string
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// NewJWTManager returns a configured JWTManager.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return &JWTManager{secretKey: secretKey, duration: duration}
}

// GenerateToken issues a signed HS256 token for a user. The email claim
// is stored normalized so every consumer compares the same form.
func (m *JWTManager) GenerateToken(userID bson.ObjectID, email string) (string, time.Time, error) {
	expiresAt := time.Now().Add(m.duration)

	claims := &Claims{
		UserID: userID.Hex(),
		Email:  normalize.Email(email),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(m.secretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Reject anything but HMAC so an attacker cannot downgrade
		// verification to an asymmetric scheme.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// UserObjectID converts the hex user id claim back to an ObjectID.
func (c *Claims) UserObjectID() (bson.ObjectID, error) {
	return bson.ObjectIDFromHex(c.UserID)
}

// HashPassword returns a bcrypt hash for the provided plaintext.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
