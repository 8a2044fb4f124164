// Package model defines the data structures used throughout the application.
package model

import (
	"strings"
	"time"
)

// User represents a registered account.
//
// Accounts are created either by email/password registration or on first
// GitHub login. GitHubID is zero for accounts that never linked GitHub; the
// column is stored as NULL in that case so the UNIQUE index ignores it.
//
// Avatar holds the storage key of the uploaded avatar, not its URL. The HTTP
// layer turns the key into a URL with storage.Store.URL.
type User struct {
	ID           int64
	Email        string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	GitHubID     int64
	Avatar       string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// IsSubscribed is relative to the requesting user and is only filled in
	// by read queries that receive a viewer ID.
	IsSubscribed bool
}

// DisplayName is "First Last" when a name is set and the username otherwise.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Author is a user together with a page of their recipes, as shown in the
// subscriptions listing.
type Author struct {
	User
	Recipes      []Recipe
	RecipesCount int
}
