package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/model"
	"github.com/sakif/recipe-share/internal/repository"
)

// ShoppingService turns a user's cart into a shopping list.
type ShoppingService struct {
	cart   repository.ShoppingRepository
	users  repository.UserRepository
	logger *slog.Logger
}

func NewShoppingService(cart repository.ShoppingRepository, users repository.UserRepository, logger *slog.Logger) *ShoppingService {
	return &ShoppingService{cart: cart, users: users, logger: logger}
}

// groupKey identifies one line of the list. The same name in two units is
// two lines.
type groupKey struct {
	name string
	unit string
}

// Build aggregates every ingredient row of every recipe in userID's cart.
//
//  1. An empty cart fails with ErrEmptyCart.
//  2. Rows are grouped by (name, unit) and their amounts summed.
//  3. Lines are sorted by name using byte-wise comparison, unit breaking
//     ties, and numbered from 1.
func (s *ShoppingService) Build(ctx context.Context, userID int64) (*model.ShoppingList, error) {
	if err := requireViewer(userID); err != nil {
		return nil, err
	}

	recipeIDs, err := s.cart.CartRecipeIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/shopping: reading cart of user %d: %w", userID, err)
	}
	if len(recipeIDs) == 0 {
		return nil, apperror.EmptyCart()
	}

	user, err := s.users.GetUserByID(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("service/shopping: fetching user %d: %w", userID, err)
	}

	rows, err := s.cart.CartIngredients(ctx, recipeIDs)
	if err != nil {
		return nil, fmt.Errorf("service/shopping: reading cart ingredients: %w", err)
	}

	list := &model.ShoppingList{
		Owner: user.DisplayName(),
		Items: Aggregate(rows),
	}

	s.logger.Info("shopping list built",
		slog.Int64("userID", userID),
		slog.Int("recipes", len(recipeIDs)),
		slog.Int("items", len(list.Items)),
	)
	return list, nil
}

// Aggregate groups, sums, sorts and numbers cart rows. It is pure so the
// ordering rules can be tested without a database.
func Aggregate(rows []model.CartIngredient) []model.ShoppingItem {
	totals := make(map[groupKey]int, len(rows))
	for _, row := range rows {
		totals[groupKey{name: row.Name, unit: row.MeasurementUnit}] += row.Amount
	}

	items := make([]model.ShoppingItem, 0, len(totals))
	for k, total := range totals {
		items = append(items, model.ShoppingItem{
			Name:            k.name,
			MeasurementUnit: k.unit,
			Total:           total,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].MeasurementUnit < items[j].MeasurementUnit
	})
	for i := range items {
		items[i].Index = i + 1
	}
	return items
}
