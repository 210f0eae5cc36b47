package notehub

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/notehub-io/notehub/pkg/models"
)

// tokenTTL is how long a session token stays valid.
const tokenTTL = 24 * time.Hour

// authenticator mints and verifies the HS256 session tokens used by the
// API. Tokens are stateless: the server keeps no session table, so a token
// stays valid until it expires even if minted by a previous process with
// the same secret.
type authenticator struct {
	secret []byte
}

// newAuthenticator builds an authenticator from the configured secret. An
// empty secret gets replaced with a random per-process one, which is fine
// for development but invalidates tokens on restart.
func newAuthenticator(secret string) (*authenticator, error) {
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		return &authenticator{secret: buf}, nil
	}
	return &authenticator{secret: []byte(secret)}, nil
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
}

// MintToken issues a signed session token for the user.
func (a *authenticator) MintToken(user *models.User) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
		Name: user.Name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify checks a token's signature and expiry and returns the user ID it
// was minted for.
func (a *authenticator) Verify(token string) (models.UserID, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.UserID{}, err
	}
	if !parsed.Valid {
		return models.UserID{}, fmt.Errorf("invalid token")
	}
	return models.ParseUserID(claims.Subject)
}

type contextKey string

const userContextKey contextKey = "notehub.user"

// currentUser returns the authenticated user attached by requireAuth.
func currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(userContextKey).(*models.User)
	return user
}

// requireAuth verifies the bearer token and loads the user into the
// request context. Requests without a valid token get 401.
func (a *App) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			// Browsers cannot set headers on WebSocket upgrades, so the
			// token may ride in the query string instead.
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}
		userID, err := a.auth.Verify(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid authorization token")
			return
		}
		user, err := a.store.GetUser(r.Context(), userID)
		if err != nil {
			a.respondStoreError(w, err)
			return
		}
		if user == nil {
			respondError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// SignUpRequest is the payload for POST /api/auth/signup.
type SignUpRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// SignInRequest is the payload for POST /api/auth/signin.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries a session token and the authenticated user.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (a *App) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Name == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email, name, and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	user := &models.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
	}
	if err := a.store.CreateUser(r.Context(), user); err != nil {
		a.respondStoreError(w, err)
		return
	}

	token, err := a.auth.MintToken(user)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

func (a *App) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := a.auth.MintToken(user)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

func (a *App) handleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, currentUser(r))
}
