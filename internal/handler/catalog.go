package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/recipe-share/internal/service"
)

// CatalogHandler serves the read-only tag and ingredient reference data.
// Neither listing is paginated.
type CatalogHandler struct {
	ingredients *service.IngredientService
	tags        *service.TagService
	logger      *slog.Logger
}

func NewCatalogHandler(ingredients *service.IngredientService, tags *service.TagService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		ingredients: ingredients,
		tags:        tags,
		logger:      logger,
	}
}

func (h *CatalogHandler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *CatalogHandler) HandleGetTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	tag, err := h.tags.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

// HandleListIngredients answers ?name= with a case-insensitive prefix match
// and ?search= with fuzzy matching (best first). search wins when both are
// given; limit caps fuzzy results.
func (h *CatalogHandler) HandleListIngredients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if search := q.Get("search"); search != "" {
		limit, _ := strconv.Atoi(q.Get("limit"))
		found, err := h.ingredients.Search(r.Context(), search, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)
		return
	}

	found, err := h.ingredients.List(r.Context(), q.Get("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (h *CatalogHandler) HandleGetIngredient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	ing, err := h.ingredients.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ing)
}
