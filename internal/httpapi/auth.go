package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"caja/backend/internal/domain"
	"caja/backend/internal/service"
	"caja/backend/internal/session"
	"caja/backend/internal/store"
	"caja/backend/internal/xid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AuthManager is the identity provider: bcrypt credentials keyed by email and
// HS256 session tokens.
type AuthManager struct {
	mu          sync.RWMutex
	secret      []byte
	credentials store.CredentialStore
	users       map[string]credential
}

type credential struct {
	uid      string
	password string
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	SessionID string `json:"sid"`
}

type Claims struct {
	UserID    string
	SessionID string
}

func NewAuthManager(secret string, credentials store.CredentialStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}

	manager := &AuthManager{
		secret:      []byte(secret),
		credentials: credentials,
		users:       make(map[string]credential),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	manager.loadCredentials(ctx)
	return manager
}

// Authenticate returns the uid behind a matching email and password.
func (a *AuthManager) Authenticate(ctx context.Context, email string, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return "", &service.ValidationError{Field: "email", Message: "correo electrónico inválido"}
	}

	// Pick up credentials created by other instances.
	a.loadCredentials(ctx)

	a.mu.RLock()
	cred, ok := a.users[email]
	a.mu.RUnlock()
	if !ok || !verifyPassword(cred.password, password) {
		return "", ErrInvalidCredentials
	}
	return cred.uid, nil
}

// CreateCredential registers a new login without touching any existing
// session, so an administrator stays signed in while creating users.
func (a *AuthManager) CreateCredential(ctx context.Context, email string, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return "", &service.ValidationError{Field: "email", Message: "correo electrónico inválido"}
	}
	if len(password) < 6 {
		return "", &service.ValidationError{Field: "password", Message: "la contraseña debe tener al menos 6 caracteres"}
	}

	a.mu.RLock()
	_, exists := a.users[email]
	a.mu.RUnlock()
	if exists {
		return "", store.ErrConflict
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password")
	}

	uid := xid.New("uid")
	if err := a.credentials.CreateCredential(ctx, domain.Credential{
		UID:          uid,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		return "", err
	}

	a.mu.Lock()
	a.users[email] = credential{uid: uid, password: passwordHash}
	a.mu.Unlock()
	return uid, nil
}

func (a *AuthManager) Sign(sess session.Session) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   sess.UserID,
			IssuedAt:  jwtlib.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwtlib.NewNumericDate(sess.ExpiresAt),
			Issuer:    "caja",
		},
		SessionID: sess.ID,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) ParseToken(tokenStr string) (Claims, error) {
	claims := &sessionClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer("caja"))
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.SessionID == "" {
		return Claims{}, ErrInvalidToken
	}
	return Claims{UserID: sub, SessionID: claims.SessionID}, nil
}

// loadCredentials refreshes the in-memory cache from the credential store and
// upgrades legacy plain-text passwords to bcrypt.
func (a *AuthManager) loadCredentials(ctx context.Context) {
	if a.credentials == nil {
		return
	}

	creds, err := a.credentials.ListCredentials(ctx)
	if err != nil {
		log.Printf("[auth] WARN: failed to load credentials: %v", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, cred := range creds {
		email := strings.ToLower(strings.TrimSpace(cred.Email))
		if email == "" {
			continue
		}
		password := cred.PasswordHash
		if !isPasswordHash(password) {
			hashed, err := hashPassword(password)
			if err == nil {
				password = hashed
				if err := a.credentials.UpdateCredentialPassword(ctx, cred.UID, hashed); err != nil {
					log.Printf("[auth] WARN: failed to upgrade password hash uid=%s: %v", cred.UID, err)
				}
			}
		}
		a.users[email] = credential{uid: cred.UID, password: password}
	}
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
