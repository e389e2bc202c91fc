package v1

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	apierrors "github.com/campfire-chat/campfire/server/internal/errors"
	"github.com/campfire-chat/campfire/store"
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

const minPasswordLength = 8

type registerUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        int32  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedTs int64  `json:"createdTs"`
}

func toUserResponse(user *store.User) *userResponse {
	return &userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedTs: user.CreatedTs,
	}
}

// RegisterUser creates an account from an email and password. Duplicate
// emails conflict, including when the row was created concurrently; the
// uniqueness constraint is the authority, not the pre-check.
func (s *APIV1Service) RegisterUser(c echo.Context) error {
	request := &registerUserRequest{}
	if err := c.Bind(request); err != nil {
		return writeError(c, apierrors.InvalidArgument("malformed request body"))
	}

	name := strings.TrimSpace(request.Name)
	if name == "" {
		return writeError(c, apierrors.InvalidArgument("name must not be empty"))
	}
	email := strings.TrimSpace(request.Email)
	if !emailPattern.MatchString(email) {
		return writeError(c, apierrors.InvalidArgument("invalid email address"))
	}
	if len(request.Password) < minPasswordLength {
		return writeError(c, apierrors.InvalidArgument("password must be at least 8 characters"))
	}

	ctx := c.Request().Context()
	existing, err := s.Store.GetUser(ctx, &store.FindUser{Email: &email})
	if err != nil {
		return writeError(c, apierrors.Internal("failed to check email", err))
	}
	if existing != nil {
		return writeError(c, apierrors.Conflict("email is already registered"))
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(request.Password), bcrypt.DefaultCost)
	if err != nil {
		return writeError(c, apierrors.Internal("failed to hash password", err))
	}

	now := time.Now().Unix()
	user, err := s.Store.CreateUser(ctx, &store.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(passwordHash),
		CreatedTs:    now,
		UpdatedTs:    now,
		RowStatus:    store.Normal,
	})
	if err != nil {
		if err == store.ErrAlreadyExists {
			return writeError(c, apierrors.Conflict("email is already registered"))
		}
		return writeError(c, apierrors.Internal("failed to create user", err))
	}

	return c.JSON(http.StatusCreated, toUserResponse(user))
}

// GetCurrentUser returns the authenticated user's profile.
func (s *APIV1Service) GetCurrentUser(c echo.Context) error {
	user := s.currentUser(c)
	if user == nil {
		return writeError(c, apierrors.Unauthorized("authentication required"))
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}
