package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/model"
	"github.com/sakif/recipe-share/internal/repository"
	"github.com/sakif/recipe-share/internal/storage"
)

// =========================================================================
// HAND-WRITTEN FAKES
// =========================================================================
//
// Each fake implements one repository interface in memory, just enough of
// the real constraint behaviour for the service under test. Errors use the
// same apperror values the sqlite package returns.

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func page[T any](items []T, opts repository.ListOptions) []T {
	if opts.Offset >= len(items) {
		return []T{}
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// ----- users -----

type fakeUsers struct {
	mu     sync.Mutex
	users  map[int64]*model.User
	nextID int64
	// subscribed marks (viewer, author) pairs for IsSubscribed.
	subscribed map[[2]int64]bool
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[int64]*model.User{}, subscribed: map[[2]int64]bool{}}
}

func (f *fakeUsers) add(u model.User) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u.ID = f.nextID
	f.users[u.ID] = &u
	return &u
}

func (f *fakeUsers) conflict(u *model.User) error {
	for _, existing := range f.users {
		if existing.ID == u.ID {
			continue
		}
		if existing.Email == u.Email {
			return apperror.ValidationFailed("email", "a user with this email already exists")
		}
		if existing.Username == u.Username {
			return apperror.ValidationFailed("username", "a user with this username already exists")
		}
	}
	return nil
}

func (f *fakeUsers) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.conflict(u); err != nil {
		return err
	}
	f.nextID++
	u.ID = f.nextID
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeUsers) UpsertGitHubUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.GitHubID == u.GitHubID {
			*u = *existing
			return nil
		}
	}
	if err := f.conflict(u); err != nil {
		return err
	}
	f.nextID++
	u.ID = f.nextID
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id, viewerID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", idString(id))
	}
	out := *u
	out.IsSubscribed = f.subscribed[[2]int64{viewerID, id}]
	return &out, nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUsers) ListUsers(_ context.Context, _ int64, opts repository.ListOptions) ([]model.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return page(all, opts), len(all), nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", idString(id))
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) SetAvatar(_ context.Context, id int64, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return "", apperror.NotFound("user", idString(id))
	}
	prev := u.Avatar
	u.Avatar = key
	return prev, nil
}

// ----- image store -----

type fakeImages struct {
	mu      sync.Mutex
	saved   map[string]*storage.Image
	deleted []string
}

func newFakeImages() *fakeImages {
	return &fakeImages{saved: map[string]*storage.Image{}}
}

func (f *fakeImages) Save(_ context.Context, key string, img *storage.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[key] = img
	return nil
}

func (f *fakeImages) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeImages) URL(key string) string {
	if key == "" {
		return ""
	}
	return "http://media.test/" + key
}

func (f *fakeImages) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

// ----- recipes -----

type fakeRecipes struct {
	mu       sync.Mutex
	recipes  map[int64]*model.Recipe
	nextID   int64
	writeErr error // returned by the next Create/Update
	writes   int
}

func newFakeRecipes() *fakeRecipes {
	return &fakeRecipes{recipes: map[int64]*model.Recipe{}}
}

func (f *fakeRecipes) add(r model.Recipe) *model.Recipe {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r.ID = f.nextID
	f.recipes[r.ID] = &r
	return &r
}

func (f *fakeRecipes) CreateRecipe(_ context.Context, r *model.Recipe) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if err := f.writeErr; err != nil {
		f.writeErr = nil
		return err
	}
	f.nextID++
	r.ID = f.nextID
	stored := *r
	f.recipes[r.ID] = &stored
	return nil
}

func (f *fakeRecipes) UpdateRecipe(_ context.Context, r *model.Recipe) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if err := f.writeErr; err != nil {
		f.writeErr = nil
		return err
	}
	if _, ok := f.recipes[r.ID]; !ok {
		return apperror.NotFound("recipe", idString(r.ID))
	}
	stored := *r
	f.recipes[r.ID] = &stored
	return nil
}

func (f *fakeRecipes) DeleteRecipe(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.recipes[id]; !ok {
		return apperror.NotFound("recipe", idString(id))
	}
	delete(f.recipes, id)
	return nil
}

func (f *fakeRecipes) GetRecipe(_ context.Context, id, _ int64) (*model.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recipes[id]
	if !ok {
		return nil, apperror.NotFound("recipe", idString(id))
	}
	out := *r
	return &out, nil
}

// ListRecipes honours AuthorID only, newest (highest id) first.
func (f *fakeRecipes) ListRecipes(_ context.Context, filter repository.RecipeFilter, _ int64, opts repository.ListOptions) ([]model.Recipe, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.Recipe
	for _, r := range f.recipes {
		if filter.AuthorID != 0 && r.AuthorID != filter.AuthorID {
			continue
		}
		all = append(all, *r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return page(all, opts), len(all), nil
}

// recordingRecipes captures the filter passed to ListRecipes.
type recordingRecipes struct {
	*fakeRecipes
	lastFilter repository.RecipeFilter
}

func (r *recordingRecipes) ListRecipes(ctx context.Context, filter repository.RecipeFilter, viewerID int64, opts repository.ListOptions) ([]model.Recipe, int, error) {
	r.lastFilter = filter
	return r.fakeRecipes.ListRecipes(ctx, filter, viewerID, opts)
}

// ----- relations -----

type fakeRelations struct {
	mu        sync.Mutex
	favorites map[[2]int64]bool
	cart      map[[2]int64]bool
	subs      [][2]int64
	recipes   *fakeRecipes
	users     *fakeUsers
}

func newFakeRelations(recipes *fakeRecipes, users *fakeUsers) *fakeRelations {
	return &fakeRelations{
		favorites: map[[2]int64]bool{},
		cart:      map[[2]int64]bool{},
		recipes:   recipes,
		users:     users,
	}
}

func (f *fakeRelations) addEdge(set map[[2]int64]bool, userID, recipeID int64) (bool, error) {
	if _, err := f.recipes.GetRecipe(context.Background(), recipeID, 0); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]int64{userID, recipeID}
	if set[k] {
		return false, nil
	}
	set[k] = true
	return true, nil
}

func (f *fakeRelations) removeEdge(set map[[2]int64]bool, relation string, userID, recipeID int64) error {
	if _, err := f.recipes.GetRecipe(context.Background(), recipeID, 0); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]int64{userID, recipeID}
	if !set[k] {
		return apperror.EdgeNotFound(relation, recipeID)
	}
	delete(set, k)
	return nil
}

func (f *fakeRelations) AddFavorite(_ context.Context, u, r int64) (bool, error) {
	return f.addEdge(f.favorites, u, r)
}

func (f *fakeRelations) RemoveFavorite(_ context.Context, u, r int64) error {
	return f.removeEdge(f.favorites, "favorite", u, r)
}

func (f *fakeRelations) AddToCart(_ context.Context, u, r int64) (bool, error) {
	return f.addEdge(f.cart, u, r)
}

func (f *fakeRelations) RemoveFromCart(_ context.Context, u, r int64) error {
	return f.removeEdge(f.cart, "shopping cart entry", u, r)
}

func (f *fakeRelations) Subscribe(_ context.Context, userID, authorID int64) error {
	if userID == authorID {
		return apperror.SelfReference("you cannot subscribe to yourself")
	}
	if _, err := f.users.GetUserByID(context.Background(), authorID, 0); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s == [2]int64{userID, authorID} {
			return apperror.DuplicateEdge("subscription", authorID)
		}
	}
	f.subs = append(f.subs, [2]int64{userID, authorID})
	return nil
}

func (f *fakeRelations) Unsubscribe(_ context.Context, userID, authorID int64) error {
	if _, err := f.users.GetUserByID(context.Background(), authorID, 0); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.subs {
		if s == [2]int64{userID, authorID} {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			return nil
		}
	}
	return apperror.EdgeNotFound("subscription", authorID)
}

func (f *fakeRelations) ListSubscriptions(ctx context.Context, userID int64, opts repository.ListOptions) ([]model.User, int, error) {
	f.mu.Lock()
	var ids []int64
	for _, s := range f.subs {
		if s[0] == userID {
			ids = append(ids, s[1])
		}
	}
	f.mu.Unlock()

	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		u, err := f.users.GetUserByID(ctx, id, userID)
		if err != nil {
			return nil, 0, err
		}
		u.IsSubscribed = true
		users = append(users, *u)
	}
	return page(users, opts), len(users), nil
}

// ----- shopping cart -----

type fakeCart struct {
	recipeIDs []int64
	rows      []model.CartIngredient
}

func (f *fakeCart) CartRecipeIDs(context.Context, int64) ([]int64, error) {
	return f.recipeIDs, nil
}

func (f *fakeCart) CartIngredients(_ context.Context, ids []int64) ([]model.CartIngredient, error) {
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []model.CartIngredient
	for _, row := range f.rows {
		if want[row.RecipeID] {
			out = append(out, row)
		}
	}
	return out, nil
}

// ----- short links -----

type fakeLinks struct {
	mu       sync.Mutex
	byRecipe map[int64]*model.ShortLink
	recipes  map[int64]bool
	calls    int
	lookups  int
}

func newFakeLinks(recipeIDs ...int64) *fakeLinks {
	f := &fakeLinks{byRecipe: map[int64]*model.ShortLink{}, recipes: map[int64]bool{}}
	for _, id := range recipeIDs {
		f.recipes[id] = true
	}
	return f
}

func (f *fakeLinks) CreateShortLink(_ context.Context, recipeID int64, token string) (*model.ShortLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if link, ok := f.byRecipe[recipeID]; ok {
		return link, nil
	}
	for _, link := range f.byRecipe {
		if link.Token == token {
			return nil, apperror.Conflict("short link token", token)
		}
	}
	if !f.recipes[recipeID] {
		return nil, apperror.NotFound("recipe", idString(recipeID))
	}
	link := &model.ShortLink{ID: int64(len(f.byRecipe) + 1), RecipeID: recipeID, Token: token}
	f.byRecipe[recipeID] = link
	return link, nil
}

func (f *fakeLinks) GetShortLinkByToken(_ context.Context, token string) (*model.ShortLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	for _, link := range f.byRecipe {
		if link.Token == token {
			return link, nil
		}
	}
	return nil, apperror.NotFound("short link", token)
}

func (f *fakeLinks) GetShortLinkByRecipe(_ context.Context, recipeID int64) (*model.ShortLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if link, ok := f.byRecipe[recipeID]; ok {
		return link, nil
	}
	return nil, apperror.NotFound("short link", idString(recipeID))
}

// ----- catalog -----

type fakeCatalog struct {
	ingredients []model.Ingredient
	tags        []model.Tag
	listCalls   int
}

func (f *fakeCatalog) ListIngredients(_ context.Context, prefix string) ([]model.Ingredient, error) {
	f.listCalls++
	var out []model.Ingredient
	for _, ing := range f.ingredients {
		if strings.HasPrefix(strings.ToLower(ing.Name), prefix) {
			out = append(out, ing)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeCatalog) GetIngredient(_ context.Context, id int64) (*model.Ingredient, error) {
	for _, ing := range f.ingredients {
		if ing.ID == id {
			return &ing, nil
		}
	}
	return nil, apperror.NotFound("ingredient", idString(id))
}

func (f *fakeCatalog) EnsureIngredient(_ context.Context, ing *model.Ingredient) (bool, error) {
	for _, existing := range f.ingredients {
		if existing.Name != ing.Name {
			continue
		}
		if existing.MeasurementUnit != ing.MeasurementUnit {
			return false, apperror.ValidationFailed("name", "ingredient already exists with another measurement unit")
		}
		ing.ID = existing.ID
		return false, nil
	}
	ing.ID = int64(len(f.ingredients) + 1)
	f.ingredients = append(f.ingredients, *ing)
	return true, nil
}

func (f *fakeCatalog) ListTags(context.Context) ([]model.Tag, error) {
	return f.tags, nil
}

func (f *fakeCatalog) GetTag(_ context.Context, id int64) (*model.Tag, error) {
	for _, t := range f.tags {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, apperror.NotFound("tag", idString(id))
}

func (f *fakeCatalog) EnsureTag(_ context.Context, tag *model.Tag) (bool, error) {
	for _, existing := range f.tags {
		if existing.Slug == tag.Slug {
			*tag = existing
			return false, nil
		}
	}
	tag.ID = int64(len(f.tags) + 1)
	f.tags = append(f.tags, *tag)
	return true, nil
}

// Compile-time checks that the fakes satisfy the interfaces.
var (
	_ repository.UserRepository       = (*fakeUsers)(nil)
	_ repository.RecipeRepository     = (*fakeRecipes)(nil)
	_ repository.RelationRepository   = (*fakeRelations)(nil)
	_ repository.ShoppingRepository   = (*fakeCart)(nil)
	_ repository.ShortLinkRepository  = (*fakeLinks)(nil)
	_ repository.IngredientRepository = (*fakeCatalog)(nil)
	_ repository.TagRepository        = (*fakeCatalog)(nil)
	_ storage.Store                   = (*fakeImages)(nil)
)
