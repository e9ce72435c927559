package service

import (
	"context"
	"errors"
	"fmt"

	"irisapi/internal/auth"
	"irisapi/internal/model"
	"irisapi/internal/repository"
)

// UserSeed describes a user created by SeedUsers.
type UserSeed struct {
	Email       string
	Password    string
	FullName    string
	AccessLevel string
}

// DemoUsers are the development accounts: one reader per restricted species
// plus an administrator.
var DemoUsers = []UserSeed{
	{Email: "setosa@example.com", Password: "password123", FullName: "Setosa User", AccessLevel: "setosa"},
	{Email: "virginica@example.com", Password: "password123", FullName: "Virginica User", AccessLevel: "virginica"},
	{Email: "admin@example.com", Password: "admin123", FullName: "Admin User", AccessLevel: model.AccessAll},
}

// SeedUsers creates the missing users and reactivates existing ones. Passwords
// and access levels of existing users are left untouched.
func SeedUsers(ctx context.Context, users repository.UserRepository, hasher *auth.PasswordHasher, seeds []UserSeed) (created int, updated int, err error) {
	for _, seed := range seeds {
		existing, err := users.FindByEmail(ctx, seed.Email)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return created, updated, fmt.Errorf("error checking user %s: %w", seed.Email, err)
		}

		if existing != nil {
			if !existing.Active {
				if err := users.SetActive(ctx, existing.ID, true); err != nil {
					return created, updated, fmt.Errorf("error reactivating user %s: %w", seed.Email, err)
				}
				updated++
			}
			continue
		}

		hash, err := hasher.Hash(seed.Password)
		if err != nil {
			return created, updated, fmt.Errorf("hash password for %s: %w", seed.Email, err)
		}
		user := &model.User{
			Email:        repository.NormalizeEmail(seed.Email),
			PasswordHash: hash,
			FullName:     seed.FullName,
			AccessLevel:  seed.AccessLevel,
			Active:       true,
		}
		if err := users.Create(ctx, user); err != nil {
			return created, updated, fmt.Errorf("error creating user %s: %w", seed.Email, err)
		}
		created++
	}
	return created, updated, nil
}
