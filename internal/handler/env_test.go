package handler_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/recipe-share/internal/auth"
	"github.com/sakif/recipe-share/internal/handler"
	"github.com/sakif/recipe-share/internal/model"
	"github.com/sakif/recipe-share/internal/repository/sqlite"
	"github.com/sakif/recipe-share/internal/service"
	"github.com/sakif/recipe-share/internal/storage"
)

var pngURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG fake"))

// testEnv wires the real services over an in-memory database and a
// temp-dir image store. Handlers are called directly; routing is covered
// by the server tests.
type testEnv struct {
	db      *sqlite.DB
	tokens  *auth.TokenService
	userSvc *service.UserService

	users   *handler.UserHandler
	recipes *handler.RecipeHandler
	catalog *handler.CatalogHandler
	auth    *handler.AuthHandler

	tags        []model.Tag
	ingredients []model.Ingredient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	images, err := storage.NewLocalStore(t.TempDir(), "http://testserver/media")
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)

	userSvc := service.NewUserService(db, passwords, images, logger)
	authSvc := service.NewAuthService(db, tokens, passwords, logger)
	ingredientSvc := service.NewIngredientService(db, logger)
	tagSvc := service.NewTagService(db, logger)
	links := service.NewShortLinkService(db, "http://testserver", logger)
	recipeSvc := service.NewRecipeService(db, images, links, logger)
	relationSvc := service.NewRelationService(db, db, db, logger)
	shoppingSvc := service.NewShoppingService(db, db, logger)

	env := &testEnv{
		db:      db,
		tokens:  tokens,
		userSvc: userSvc,
		users:   handler.NewUserHandler(userSvc, relationSvc, 2, logger),
		recipes: handler.NewRecipeHandler(recipeSvc, relationSvc, shoppingSvc, links, 2, logger),
		catalog: handler.NewCatalogHandler(ingredientSvc, tagSvc, logger),
		auth:    handler.NewAuthHandler(authSvc, nil, time.Hour, logger),
	}

	ctx := context.Background()
	_, err = tagSvc.Import(ctx, []model.Tag{
		{Name: "Breakfast", Slug: "breakfast"},
		{Name: "Lunch", Slug: "lunch"},
	})
	require.NoError(t, err)
	_, err = ingredientSvc.Import(ctx, []model.Ingredient{
		{Name: "flour", MeasurementUnit: "g"},
		{Name: "eggs", MeasurementUnit: "pcs"},
		{Name: "milk", MeasurementUnit: "ml"},
	})
	require.NoError(t, err)

	env.tags, err = tagSvc.List(ctx)
	require.NoError(t, err)
	env.ingredients, err = ingredientSvc.List(ctx, "")
	require.NoError(t, err)

	return env
}

func (e *testEnv) register(t *testing.T, username string) *model.User {
	t.Helper()
	u, err := e.userSvc.Register(context.Background(), service.RegisterInput{
		Email:     username + "@example.com",
		Username:  username,
		FirstName: "Test",
		LastName:  username,
		Password:  "s3cret-pass",
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) ingredientID(name string) int64 {
	for _, ing := range e.ingredients {
		if ing.Name == name {
			return ing.ID
		}
	}
	return 0
}

func (e *testEnv) recipeBody(name string) map[string]any {
	return map[string]any{
		"name":         name,
		"text":         "Mix everything.",
		"cooking_time": 15,
		"image":        pngURI,
		"tags":         []int64{e.tags[0].ID},
		"ingredients": []map[string]any{
			{"id": e.ingredientID("flour"), "amount": 200},
			{"id": e.ingredientID("eggs"), "amount": 2},
		},
	}
}

// createRecipe posts a recipe as userID and returns its decoded response.
func (e *testEnv) createRecipe(t *testing.T, userID int64, name string) handler.RecipeResponse {
	t.Helper()
	rr := call(e.recipes.HandleCreate, request{method: http.MethodPost, target: "/api/recipes/", body: e.recipeBody(name), userID: userID})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var out handler.RecipeResponse
	decode(t, rr, &out)
	return out
}

// request describes one direct handler call.
type request struct {
	method string
	target string
	body   any
	userID int64
	// path holds name/value pairs for r.PathValue.
	path []string
}

func call(h http.HandlerFunc, req request) *httptest.ResponseRecorder {
	var body io.Reader
	if req.body != nil {
		b, _ := json.Marshal(req.body)
		body = bytes.NewReader(b)
	}
	r := httptest.NewRequest(req.method, req.target, body)
	r.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(req.path); i += 2 {
		r.SetPathValue(req.path[i], req.path[i+1])
	}
	if req.userID > 0 {
		r = r.WithContext(auth.WithUserID(r.Context(), req.userID))
	}

	rr := httptest.NewRecorder()
	h(rr, r)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(dst), "body: %s", rr.Body.String())
}

func idPath(id int64) []string {
	return []string{"id", strconv.FormatInt(id, 10)}
}
