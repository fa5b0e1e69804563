// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// privateKey and publicKey are used for signing and verifying JWT tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL is how long issued tokens stay valid (0 => never expire).
	tokenTTL time.Duration
)

const (
	kindPlayer = "player"
	kindUser   = "user"
)

var ErrInvalidToken = errors.New("invalid token")

// parseTokenExpireTime reads TOKEN_EXPIRE_TIME ("never", "0", or a Go duration).
func parseTokenExpireTime() error {
	duration := os.Getenv("TOKEN_EXPIRE_TIME")
	if duration == "never" || duration == "0" || duration == "" {
		tokenTTL = 0
		return nil
	}
	d, err := time.ParseDuration(duration)
	if err != nil {
		return fmt.Errorf("failed to parse token expire time: %w", err)
	}
	tokenTTL = d
	return nil
}

// Init generates a fresh ed25519 key pair at runtime. Tokens issued before a
// restart stop verifying, which only costs players their seat identity.
func Init() error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return parseTokenExpireTime()
}

// InitFromPath reads raw ed25519 private/public keys from file.
func InitFromPath(privatePath, publicPath string) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}

	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	return parseTokenExpireTime()
}

func sign(claims jwt.MapClaims) (string, error) {
	if tokenTTL > 0 {
		claims["exp"] = time.Now().Add(tokenTTL).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// CreatePlayerToken signs a token binding a stable player id and display name.
func CreatePlayerToken(playerID, name string) (string, error) {
	return sign(jwt.MapClaims{"sub": playerID, "name": name, "kind": kindPlayer})
}

// CreateJWT signs an account token with "sub" = userID.
func CreateJWT(userID string) (string, error) {
	return sign(jwt.MapClaims{"sub": userID, "kind": kindUser})
}

func parse(tokenString, kind string) (jwt.MapClaims, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid jwt claims: %w", ErrInvalidToken)
	}
	if k, _ := claims["kind"].(string); k != kind {
		return nil, fmt.Errorf("token kind %q, want %q: %w", k, kind, ErrInvalidToken)
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, fmt.Errorf("missing sub in jwt: %w", ErrInvalidToken)
	}
	return claims, nil
}

// AuthenticateJWT verifies an account token and returns its user id.
func AuthenticateJWT(tokenString string) (string, error) {
	claims, err := parse(tokenString, kindUser)
	if err != nil {
		return "", err
	}
	return claims["sub"].(string), nil
}

// ParsePlayerToken verifies a player token.
func ParsePlayerToken(tokenString string) (Identity, error) {
	claims, err := parse(tokenString, kindPlayer)
	if err != nil {
		return Identity{}, err
	}
	name, _ := claims["name"].(string)
	return Identity{PlayerID: claims["sub"].(string), Name: name}, nil
}
