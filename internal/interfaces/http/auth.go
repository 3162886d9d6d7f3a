package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/garyjia/travel-expense/internal/domain/entity"
)

const actorKey = "actor"

// TokenIssuer signs and verifies HS256 bearer tokens carrying a user ID
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a new TokenIssuer
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for the user
func (t *TokenIssuer) Issue(userID int64) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    t.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns the user ID it was issued for
func (t *TokenIssuer) Parse(raw string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return 0, err
	}
	if !parsed.Valid {
		return 0, errors.New("invalid token claims")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse subject: %w", err)
	}
	return userID, nil
}

// UserLoader resolves the user a token was issued for
type UserLoader interface {
	GetUser(ctx context.Context, id int64) (*entity.User, error)
}

// authMiddleware rejects requests without a valid bearer token and stores the caller
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, err := s.tokens.Parse(raw)
		if err != nil {
			s.logger.Info("Rejected bearer token", "error", err.Error())
			abort(c, http.StatusUnauthorized, "invalid bearer token")
			return
		}

		user, err := s.users.GetUser(c.Request.Context(), userID)
		if err != nil {
			s.logger.Error("Failed to load user", "error", err, "user_id", userID)
			abort(c, http.StatusInternalServerError, "internal server error")
			return
		}
		if user == nil {
			abort(c, http.StatusUnauthorized, "unknown user")
			return
		}

		c.Set(actorKey, user)
		c.Next()
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Error: msg})
}

// actor returns the authenticated caller
func actor(c *gin.Context) *entity.User {
	return c.MustGet(actorKey).(*entity.User)
}
