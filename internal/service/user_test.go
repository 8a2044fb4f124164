package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/auth"
	"github.com/sakif/recipe-share/internal/model"
)

var testImageURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes"))

func newTestUserService() (*UserService, *fakeUsers, *fakeImages) {
	users := newFakeUsers()
	images := newFakeImages()
	svc := NewUserService(users, auth.NewPasswordServiceForTest(bcrypt.MinCost), images, newTestLogger())
	return svc, users, images
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Email:     "jane@example.com",
		Username:  "jane.doe",
		FirstName: "Jane",
		LastName:  "Doe",
		Password:  "pa55word",
	}
}

// ===== REGISTER =====

func TestRegister(t *testing.T) {
	svc, _, _ := newTestUserService()

	u, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	assert.NotZero(t, u.ID)
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$2"))
	assert.Equal(t, "Jane Doe", u.DisplayName())
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		field  string
	}{
		{"missing email", func(in *RegisterInput) { in.Email = "" }, "email"},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, "email"},
		{"long email", func(in *RegisterInput) { in.Email = strings.Repeat("a", 250) + "@x.io" }, "email"},
		{"missing username", func(in *RegisterInput) { in.Username = " " }, "username"},
		{"bad username chars", func(in *RegisterInput) { in.Username = "jane doe!" }, "username"},
		{"forbidden username", func(in *RegisterInput) { in.Username = "Me" }, "username"},
		{"long username", func(in *RegisterInput) { in.Username = strings.Repeat("a", 151) }, "username"},
		{"missing first name", func(in *RegisterInput) { in.FirstName = "" }, "first_name"},
		{"long last name", func(in *RegisterInput) { in.LastName = strings.Repeat("я", 151) }, "last_name"},
		{"missing password", func(in *RegisterInput) { in.Password = "" }, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, users, _ := newTestUserService()
			in := validRegistration()
			tt.mutate(&in)

			_, err := svc.Register(context.Background(), in)
			require.Error(t, err)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)
			assert.Empty(t, users.users)
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	svc, _, _ := newTestUserService()
	_, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	in := validRegistration()
	in.Username = "someone-else"
	_, err = svc.Register(context.Background(), in)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "email", appErr.Field)
}

// ===== READS =====

func TestMe_Anonymous(t *testing.T) {
	svc, _, _ := newTestUserService()

	_, err := svc.Me(context.Background(), 0)
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}

func TestGet_NotFound(t *testing.T) {
	svc, _, _ := newTestUserService()

	_, err := svc.Get(context.Background(), 99, 0)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

// ===== PASSWORD =====

func TestSetPassword(t *testing.T) {
	svc, _, _ := newTestUserService()
	u, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	err = svc.SetPassword(context.Background(), u.ID, "wrong", "new-pass")
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "current_password", appErr.Field)

	require.NoError(t, svc.SetPassword(context.Background(), u.ID, "pa55word", "new-pass"))

	// The old password no longer works.
	err = svc.SetPassword(context.Background(), u.ID, "pa55word", "again")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

// ===== AVATAR =====

func TestSetAvatar_ReplacesAndDeletesPrevious(t *testing.T) {
	svc, users, images := newTestUserService()
	u := users.add(model.User{Email: "a@example.com", Username: "a"})

	first, err := svc.SetAvatar(context.Background(), u.ID, testImageURI)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "users/avatars/"))
	assert.True(t, strings.HasSuffix(first, ".png"))

	second, err := svc.SetAvatar(context.Background(), u.ID, testImageURI)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, []string{first}, images.deleted)
	assert.Equal(t, 1, images.count())
	assert.Equal(t, "http://media.test/"+second, svc.ImageURL(second))
}

func TestSetAvatar_InvalidImage(t *testing.T) {
	svc, users, images := newTestUserService()
	u := users.add(model.User{Email: "a@example.com", Username: "a"})

	_, err := svc.SetAvatar(context.Background(), u.ID, "data:text/plain;base64,aGk=")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Zero(t, images.count())
}

func TestSetAvatar_UnknownUserDiscardsUpload(t *testing.T) {
	svc, _, images := newTestUserService()

	_, err := svc.SetAvatar(context.Background(), 404, testImageURI)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	assert.Zero(t, images.count())
	assert.Len(t, images.deleted, 1)
}

func TestDeleteAvatar(t *testing.T) {
	svc, users, images := newTestUserService()
	u := users.add(model.User{Email: "a@example.com", Username: "a"})

	err := svc.DeleteAvatar(context.Background(), u.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "no avatar yet")

	key, err := svc.SetAvatar(context.Background(), u.ID, testImageURI)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteAvatar(context.Background(), u.ID))

	assert.Contains(t, images.deleted, key)
	stored, _ := users.GetUserByID(context.Background(), u.ID, 0)
	assert.Empty(t, stored.Avatar)
}
