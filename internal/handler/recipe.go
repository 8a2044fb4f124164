package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/recipe-share/internal/model"
	"github.com/sakif/recipe-share/internal/service"
)

// RecipeHandler serves recipes and everything hanging off one: favorites,
// the shopping cart, the shopping-list download and short links.
//
//	GET    /api/recipes/                         → filtered, paginated list
//	POST   /api/recipes/                         → create (auth)
//	GET    /api/recipes/{id}/                    → one recipe
//	PATCH  /api/recipes/{id}/                    → update (author)
//	DELETE /api/recipes/{id}/                    → delete (author)
//	GET    /api/recipes/{id}/get-link/           → short link
//	POST   /api/recipes/{id}/favorite/           → add favorite (auth)
//	DELETE /api/recipes/{id}/favorite/           → remove favorite (auth)
//	POST   /api/recipes/{id}/shopping_cart/      → add to cart (auth)
//	DELETE /api/recipes/{id}/shopping_cart/      → remove from cart (auth)
//	GET    /api/recipes/download_shopping_cart/  → text/plain list (auth)
//	GET    /r/{token}/                           → 302 to the recipe
type RecipeHandler struct {
	recipes   *service.RecipeService
	relations *service.RelationService
	shopping  *service.ShoppingService
	links     *service.ShortLinkService
	pageSize  int
	logger    *slog.Logger
}

func NewRecipeHandler(
	recipes *service.RecipeService,
	relations *service.RelationService,
	shopping *service.ShoppingService,
	links *service.ShortLinkService,
	pageSize int,
	logger *slog.Logger,
) *RecipeHandler {
	return &RecipeHandler{
		recipes:   recipes,
		relations: relations,
		shopping:  shopping,
		links:     links,
		pageSize:  pageSize,
		logger:    logger,
	}
}

type ingredientAmountRequest struct {
	ID     int64 `json:"id"`
	Amount int   `json:"amount"`
}

type recipeRequest struct {
	Ingredients []ingredientAmountRequest `json:"ingredients"`
	Tags        []int64                   `json:"tags"`
	Image       string                    `json:"image"`
	Name        string                    `json:"name"`
	Text        string                    `json:"text"`
	CookingTime int                       `json:"cooking_time"`
}

func (req *recipeRequest) input() service.RecipeInput {
	ingredients := make([]service.IngredientAmount, len(req.Ingredients))
	for i, ing := range req.Ingredients {
		ingredients[i] = service.IngredientAmount{ID: ing.ID, Amount: ing.Amount}
	}
	return service.RecipeInput{
		Name:        req.Name,
		Text:        req.Text,
		CookingTime: req.CookingTime,
		Image:       req.Image,
		Tags:        req.Tags,
		Ingredients: ingredients,
	}
}

// ===== CRUD =====

func (h *RecipeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p := parsePaging(r, h.pageSize)
	recipes, total, err := h.recipes.List(r.Context(), recipeQuery(r), viewerID(r), p.options())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(r, p, total, newRecipeList(recipes, h.recipes.ImageURL)))
}

// recipeQuery reads the list filters. Unparseable values are ignored
// rather than rejected.
func recipeQuery(r *http.Request) service.RecipeQuery {
	q := r.URL.Query()
	var out service.RecipeQuery
	for _, slug := range q["tags"] {
		if slug != "" {
			out.Tags = append(out.Tags, slug)
		}
	}
	if id, err := strconv.ParseInt(q.Get("author"), 10, 64); err == nil && id > 0 {
		out.AuthorID = id
	}
	out.IsFavorited = truthy(q.Get("is_favorited"))
	out.IsInShoppingCart = truthy(q.Get("is_in_shopping_cart"))
	return out
}

func truthy(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func (h *RecipeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	recipe, err := h.recipes.Create(r.Context(), viewerID(r), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRecipeResponse(recipe, h.recipes.ImageURL))
}

func (h *RecipeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	recipe, err := h.recipes.Get(r.Context(), id, viewerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecipeResponse(recipe, h.recipes.ImageURL))
}

func (h *RecipeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req recipeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	recipe, err := h.recipes.Update(r.Context(), viewerID(r), id, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecipeResponse(recipe, h.recipes.ImageURL))
}

func (h *RecipeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.recipes.Delete(r.Context(), viewerID(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== FAVORITES / CART =====

type addEdgeFunc func(r *http.Request, userID, recipeID int64) (*model.Recipe, bool, error)
type removeEdgeFunc func(r *http.Request, userID, recipeID int64) error

func (h *RecipeHandler) HandleFavorite(w http.ResponseWriter, r *http.Request) {
	h.addEdge(w, r, func(r *http.Request, u, id int64) (*model.Recipe, bool, error) {
		return h.relations.Favorite(r.Context(), u, id)
	})
}

func (h *RecipeHandler) HandleUnfavorite(w http.ResponseWriter, r *http.Request) {
	h.removeEdge(w, r, func(r *http.Request, u, id int64) error {
		return h.relations.Unfavorite(r.Context(), u, id)
	})
}

func (h *RecipeHandler) HandleAddToCart(w http.ResponseWriter, r *http.Request) {
	h.addEdge(w, r, func(r *http.Request, u, id int64) (*model.Recipe, bool, error) {
		return h.relations.AddToCart(r.Context(), u, id)
	})
}

func (h *RecipeHandler) HandleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	h.removeEdge(w, r, func(r *http.Request, u, id int64) error {
		return h.relations.RemoveFromCart(r.Context(), u, id)
	})
}

// addEdge answers 201 for a new edge and 200 when it already existed.
func (h *RecipeHandler) addEdge(w http.ResponseWriter, r *http.Request, add addEdgeFunc) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	recipe, created, err := add(r, viewerID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, newShortRecipe(recipe, h.recipes.ImageURL))
}

func (h *RecipeHandler) removeEdge(w http.ResponseWriter, r *http.Request, remove removeEdgeFunc) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := remove(r, viewerID(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDownloadShoppingCart sends the aggregated list as a text file.
func (h *RecipeHandler) HandleDownloadShoppingCart(w http.ResponseWriter, r *http.Request) {
	list, err := h.shopping.Build(r.Context(), viewerID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="shopping_list.txt"`)
	w.WriteHeader(http.StatusOK)
	if _, err := list.WriteTo(w); err != nil {
		h.logger.Error("failed to write shopping list", slog.String("error", err.Error()))
	}
}

// ===== SHORT LINKS =====

type shortLinkResponse struct {
	ShortLink string `json:"short-link"`
}

func (h *RecipeHandler) HandleGetLink(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	link, err := h.links.Issue(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shortLinkResponse{ShortLink: h.links.URL(link.Token)})
}

// HandleRedirect resolves a short-link token and redirects to the recipe
// page.
func (h *RecipeHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	recipeID, err := h.links.Resolve(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, h.links.RecipeURL(recipeID), http.StatusFound)
}
