package store

import (
	"context"
	"errors"
)

// ErrAlreadyExists is returned when a create violates a uniqueness
// constraint, e.g. registering an email that is already taken.
var ErrAlreadyExists = errors.New("already exists")

// User is a registered principal. PasswordHash is empty for accounts created
// through OAuth sign-in.
type User struct {
	ID           int32
	Name         string
	Email        string
	PasswordHash string
	CreatedTs    int64
	UpdatedTs    int64
	RowStatus    RowStatus
}

type FindUser struct {
	ID    *int32
	Email *string
}

type UpdateUser struct {
	ID           int32
	Name         *string
	PasswordHash *string
	UpdatedTs    *int64
	RowStatus    *RowStatus
}

type DeleteUser struct {
	ID int32
}

func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	user, err := s.driver.CreateUser(ctx, create)
	if err != nil {
		return nil, err
	}
	s.userCache.Set(user.Email, user)
	return user, nil
}

func (s *Store) UpdateUser(ctx context.Context, update *UpdateUser) (*User, error) {
	user, err := s.driver.UpdateUser(ctx, update)
	if err != nil {
		return nil, err
	}
	s.userCache.Set(user.Email, user)
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context, find *FindUser) ([]*User, error) {
	return s.driver.ListUsers(ctx, find)
}

// GetUser returns the single user matching find, or nil when none matches.
func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	if find.Email != nil && find.ID == nil {
		if cached, ok := s.userCache.Get(*find.Email); ok {
			if user, ok := cached.(*User); ok {
				return user, nil
			}
		}
	}

	users, err := s.driver.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}

	user := users[0]
	s.userCache.Set(user.Email, user)
	return user, nil
}

func (s *Store) DeleteUser(ctx context.Context, delete *DeleteUser) error {
	user, err := s.GetUser(ctx, &FindUser{ID: &delete.ID})
	if err == nil && user != nil {
		s.userCache.Delete(user.Email)
	}
	return s.driver.DeleteUser(ctx, delete)
}
