package model

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// CartIngredient is one raw (name, unit, amount) row joined from a recipe in
// a user's shopping cart, before aggregation.
type CartIngredient struct {
	RecipeID        int64
	Name            string
	MeasurementUnit string
	Amount          int
}

// ShoppingItem is one aggregated line of a shopping list. Index is 1-based.
type ShoppingItem struct {
	Index           int
	Name            string
	MeasurementUnit string
	Total           int
}

// ShoppingList is the aggregated cart of one user.
type ShoppingList struct {
	Owner string
	Items []ShoppingItem
}

const shoppingListRule = 50

// WriteTo renders the plain-text report:
//
//	Shopping list
//	User: Jane Doe
//	==================================================
//
//	1. eggs (pcs) — 2
//	2. flour (g) — 500
func (l *ShoppingList) WriteTo(w io.Writer) (int64, error) {
	var b bytes.Buffer
	b.WriteString("Shopping list\n")
	fmt.Fprintf(&b, "User: %s\n", l.Owner)
	b.WriteString(strings.Repeat("=", shoppingListRule))
	b.WriteString("\n\n")
	for _, item := range l.Items {
		fmt.Fprintf(&b, "%d. %s (%s) — %d\n", item.Index, item.Name, item.MeasurementUnit, item.Total)
	}
	return b.WriteTo(w)
}

func (l *ShoppingList) String() string {
	var sb strings.Builder
	_, _ = l.WriteTo(&sb)
	return sb.String()
}
