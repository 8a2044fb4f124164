package model

import "time"

// ShortLink maps an opaque token to a recipe. A recipe has at most one.
type ShortLink struct {
	ID        int64
	RecipeID  int64
	Token     string
	CreatedAt time.Time
}
