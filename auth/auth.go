package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/jameskimau/inbox-rules/internal/config"
)

var (
	// ErrMissingCredentials is returned when email or password is empty
	ErrMissingCredentials = errors.New("email and password are required")

	// ErrNotConfigured is returned when the server has no login credentials
	ErrNotConfigured = errors.New("auth credentials are not configured on the server")

	// ErrInvalidCredentials is returned when email or password do not match
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned for malformed, forged or expired tokens
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Config holds the secret and the single set of login credentials
type Config struct {
	Secret   string
	Email    string
	Password string // plaintext, or a bcrypt hash starting with "$2"
	TokenTTL time.Duration
	Issuer   string
}

// DefaultTokenTTL is how long issued tokens stay valid
const DefaultTokenTTL = time.Hour

// Claims are the JWT claims issued on login
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies bearer tokens
type Authenticator struct {
	cfg Config
	now func() time.Time
}

// NewAuthenticator validates cfg and returns an Authenticator.
// A missing secret is a *config.ConfigError.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.Secret == "" {
		return nil, &config.ConfigError{Key: "JWT_SECRET", Reason: "required"}
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}

	return &Authenticator{cfg: cfg, now: time.Now}, nil
}

// Login checks the credentials and returns a signed token and its expiry
func (a *Authenticator) Login(email, password string) (string, time.Time, error) {
	if email == "" || password == "" {
		return "", time.Time{}, ErrMissingCredentials
	}

	if a.cfg.Email == "" || a.cfg.Password == "" {
		return "", time.Time{}, ErrNotConfigured
	}

	if !a.checkCredentials(email, password) {
		return "", time.Time{}, ErrInvalidCredentials
	}

	return a.issue(email)
}

func (a *Authenticator) checkCredentials(email, password string) bool {
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(a.cfg.Email)) == 1

	var passwordOK bool
	if strings.HasPrefix(a.cfg.Password, "$2") {
		passwordOK = bcrypt.CompareHashAndPassword([]byte(a.cfg.Password), []byte(password)) == nil
	} else {
		passwordOK = subtle.ConstantTimeCompare([]byte(password), []byte(a.cfg.Password)) == 1
	}

	return emailOK && passwordOK
}

func (a *Authenticator) issue(email string) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.cfg.TokenTTL)

	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    a.cfg.Issuer,
			Subject:   email,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify checks the signature, algorithm and expiry of a token
func (a *Authenticator) Verify(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.cfg.Secret), nil
	}, jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return ErrInvalidToken
	}

	return nil
}

// Middleware rejects requests without a valid "Authorization: Bearer <token>"
// header. It does not attach any identity to the request.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeUnauthorized(w, "Missing or invalid Authorization header")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if err := a.Verify(token); err != nil {
			writeUnauthorized(w, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
