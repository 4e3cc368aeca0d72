// ABOUTME: JWT token verification for user bearer authentication
// ABOUTME: Uses HS256 signing with configurable secret and a projects claim

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// User is the identity carried by a verified bearer token.
type User struct {
	ID       string
	Projects []string
}

// MemberOf reports whether the user belongs to the given project.
func (u *User) MemberOf(projectID string) bool {
	for _, p := range u.Projects {
		if p == projectID {
			return true
		}
	}
	return false
}

// TokenVerifier defines the interface for bearer token verification.
// The concrete implementation stands in for the external identity provider.
type TokenVerifier interface {
	Verify(tokenString string) (*User, error)
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a new JWT verifier with the given secret
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify validates the token and extracts the user from the "sub" and
// "projects" claims.
func (v *JWTVerifier) Verify(tokenString string) (*User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	user := &User{ID: sub}
	if rawProjects, ok := claims["projects"].([]any); ok {
		for _, p := range rawProjects {
			if project, ok := p.(string); ok {
				user.Projects = append(user.Projects, project)
			}
		}
	}

	return user, nil
}

// Generate creates a new JWT token for the given user ID and project
// memberships with expiration.
func (v *JWTVerifier) Generate(userID string, projects []string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      userID,
		"projects": projects,
		"iat":      now.Unix(),
		"exp":      now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
