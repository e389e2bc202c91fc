package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	// Issuer is the issuer of the session token.
	Issuer = "campfire"
	// SessionAudienceName is the audience claim of session tokens.
	SessionAudienceName = "campfire.session"
	// SessionDuration is how long a session token stays valid.
	SessionDuration = 30 * 24 * time.Hour
	// SessionCookieName is the cookie carrying the session token.
	SessionCookieName = "campfire_session"
	// KeyID is the kid header value for the signing key.
	KeyID = "v1"
)

// ClaimsMessage is the claim set of a session token. The subject holds the
// user ID.
type ClaimsMessage struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// GenerateSessionToken signs a session token for the given user. An
// expiration in the past yields a token that never expires; callers should
// always pass a future time.
func GenerateSessionToken(userID int32, name, email string, expirationTime time.Time, secret []byte) (string, error) {
	claims := &ClaimsMessage{
		Name:  name,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   Issuer,
			Audience: jwt.ClaimStrings{SessionAudienceName},
			IssuedAt: jwt.NewNumericDate(time.Now()),
			Subject:  strconv.Itoa(int(userID)),
		},
	}
	if expirationTime.After(time.Now()) {
		claims.ExpiresAt = jwt.NewNumericDate(expirationTime)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = KeyID
	return token.SignedString(secret)
}

// ParseSessionToken verifies the signature and audience of a session token
// and returns its claims.
func ParseSessionToken(tokenString string, secret []byte) (*ClaimsMessage, error) {
	claims := &ClaimsMessage{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		if kid, ok := t.Header["kid"].(string); !ok || kid != KeyID {
			return nil, errors.Errorf("unexpected key id: %v", t.Header["kid"])
		}
		return secret, nil
	}, jwt.WithAudience(SessionAudienceName))
	if err != nil {
		return nil, errors.Wrap(err, "invalid session token")
	}
	return claims, nil
}

// UserIDFromClaims extracts the user ID from the subject claim.
func UserIDFromClaims(claims *ClaimsMessage) (int32, error) {
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return 0, fmt.Errorf("malformed subject %q", claims.Subject)
	}
	return int32(id), nil
}
