package auth

import (
	"context"

	"github.com/pkg/errors"

	"github.com/campfire-chat/campfire/store"
)

// Authenticator resolves session tokens to store users.
type Authenticator struct {
	store  *store.Store
	secret []byte
}

// NewAuthenticator creates an authenticator bound to the instance secret.
func NewAuthenticator(store *store.Store, secret string) *Authenticator {
	return &Authenticator{
		store:  store,
		secret: []byte(secret),
	}
}

// Authenticate verifies a session token and loads its user. It returns an
// error for missing, malformed, or expired tokens, and for users that no
// longer exist or have been archived.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*store.User, error) {
	if token == "" {
		return nil, errors.New("missing session token")
	}
	claims, err := ParseSessionToken(token, a.secret)
	if err != nil {
		return nil, err
	}
	userID, err := UserIDFromClaims(claims)
	if err != nil {
		return nil, err
	}
	user, err := a.store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load user")
	}
	if user == nil {
		return nil, errors.Errorf("user %d not found", userID)
	}
	if user.RowStatus != store.Normal {
		return nil, errors.Errorf("user %d is archived", userID)
	}
	return user, nil
}
