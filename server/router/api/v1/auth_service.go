package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/campfire-chat/campfire/server/auth"
	apierrors "github.com/campfire-chat/campfire/server/internal/errors"
	"github.com/campfire-chat/campfire/store"
)

const (
	oauthStateCookieName = "campfire_oauth_state"
	googleUserInfoURL    = "https://www.googleapis.com/oauth2/v2/userinfo"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn verifies an email/password pair and issues a session cookie. The
// response does not distinguish an unknown email from a wrong password.
func (s *APIV1Service) SignIn(c echo.Context) error {
	request := &signInRequest{}
	if err := c.Bind(request); err != nil {
		return writeError(c, apierrors.InvalidArgument("malformed request body"))
	}

	ctx := c.Request().Context()
	email := strings.TrimSpace(request.Email)
	user, err := s.Store.GetUser(ctx, &store.FindUser{Email: &email})
	if err != nil {
		return writeError(c, apierrors.Internal("failed to look up user", err))
	}
	if user == nil || user.RowStatus != store.Normal || user.PasswordHash == "" {
		return writeError(c, apierrors.Unauthorized("invalid credentials"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(request.Password)); err != nil {
		return writeError(c, apierrors.Unauthorized("invalid credentials"))
	}

	if err := s.issueSession(c, user); err != nil {
		return writeError(c, apierrors.Internal("failed to issue session", err))
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// SignOut clears the session cookie. Sessions are stateless, there is
// nothing to revoke server-side.
func (s *APIV1Service) SignOut(c echo.Context) error {
	s.setSessionCookie(c, "", time.Unix(0, 0))
	return c.NoContent(http.StatusNoContent)
}

// GoogleSignIn redirects to Google's consent page with a state nonce bound
// to the browser through a short-lived cookie.
func (s *APIV1Service) GoogleSignIn(c echo.Context) error {
	state := shortuuid.New()
	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, s.googleOAuthConfig().AuthCodeURL(state))
}

// GoogleCallback completes the OAuth flow: it validates the state nonce,
// exchanges the code, fetches the Google profile, and signs in the matching
// user, creating one on first sign-in.
func (s *APIV1Service) GoogleCallback(c echo.Context) error {
	stateCookie, err := c.Cookie(oauthStateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != c.QueryParam("state") {
		return writeError(c, apierrors.Unauthorized("state mismatch"))
	}
	code := c.QueryParam("code")
	if code == "" {
		return writeError(c, apierrors.InvalidArgument("missing authorization code"))
	}

	ctx := c.Request().Context()
	config := s.googleOAuthConfig()
	token, err := config.Exchange(ctx, code)
	if err != nil {
		return writeError(c, apierrors.Unauthorized("failed to exchange authorization code"))
	}
	info, err := fetchGoogleUserInfo(ctx, config, token)
	if err != nil {
		return writeError(c, apierrors.Internal("failed to fetch user info", err))
	}
	if info.Email == "" {
		return writeError(c, apierrors.Unauthorized("google account has no email"))
	}

	user, err := s.findOrCreateOAuthUser(c, info)
	if err != nil {
		return writeError(c, err)
	}
	if err := s.issueSession(c, user); err != nil {
		return writeError(c, apierrors.Internal("failed to issue session", err))
	}
	return c.Redirect(http.StatusFound, "/")
}

type googleUserInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func fetchGoogleUserInfo(ctx context.Context, config *oauth2.Config, token *oauth2.Token) (*googleUserInfo, error) {
	client := config.Client(ctx, token)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}
	info := &googleUserInfo{}
	if err := json.NewDecoder(resp.Body).Decode(info); err != nil {
		return nil, err
	}
	return info, nil
}

func (s *APIV1Service) findOrCreateOAuthUser(c echo.Context, info *googleUserInfo) (*store.User, error) {
	ctx := c.Request().Context()
	user, err := s.Store.GetUser(ctx, &store.FindUser{Email: &info.Email})
	if err != nil {
		return nil, apierrors.Internal("failed to look up user", err)
	}
	if user != nil {
		if user.RowStatus != store.Normal {
			return nil, apierrors.Unauthorized("account is archived")
		}
		return user, nil
	}

	name := info.Name
	if name == "" {
		name = info.Email
	}
	now := time.Now().Unix()
	user, err = s.Store.CreateUser(ctx, &store.User{
		Name:      name,
		Email:     info.Email,
		CreatedTs: now,
		UpdatedTs: now,
		RowStatus: store.Normal,
	})
	if err != nil {
		if err == store.ErrAlreadyExists {
			// Lost a race with a concurrent first sign-in.
			user, err = s.Store.GetUser(ctx, &store.FindUser{Email: &info.Email})
			if err == nil && user != nil {
				return user, nil
			}
		}
		return nil, apierrors.Internal("failed to create user", err)
	}
	return user, nil
}

func (s *APIV1Service) googleOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.Profile.GoogleClientID,
		ClientSecret: s.Profile.GoogleClientSecret,
		RedirectURL:  fmt.Sprintf("%s/api/v1/auth/google/callback", strings.TrimSuffix(s.Profile.InstanceURL, "/")),
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}
}

func (s *APIV1Service) issueSession(c echo.Context, user *store.User) error {
	expires := time.Now().Add(auth.SessionDuration)
	token, err := auth.GenerateSessionToken(user.ID, user.Name, user.Email, expires, []byte(s.Secret))
	if err != nil {
		return err
	}
	s.setSessionCookie(c, token, expires)
	return nil
}

func (s *APIV1Service) setSessionCookie(c echo.Context, token string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   !s.Profile.IsDev(),
		SameSite: http.SameSiteLaxMode,
	})
}
